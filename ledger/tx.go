package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/store"
)

// Tx is a staged write batch. It is not safe for concurrent use; the
// engine serializes operations above it.
type Tx struct {
	l      *Ledger
	writes map[string][]byte
}

func (tx *Tx) get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := tx.writes[key]; ok {
		return v, v != nil, nil
	}
	v, ok, err := tx.l.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("ledger get %s: %w", key, err)
	}
	return v, ok, nil
}

func (tx *Tx) put(key string, v any) error {
	b, err := encode(key, v)
	if err != nil {
		return err
	}
	tx.writes[key] = b
	return nil
}

func (tx *Tx) getUint(ctx context.Context, key string) (uint64, error) {
	raw, ok, err := tx.get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	var v uint64
	if err := decode(key, raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (tx *Tx) getIDs(ctx context.Context, key string) ([]uint64, error) {
	raw, ok, err := tx.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []uint64{}, nil
	}
	var ids []uint64
	if err := decode(key, raw, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

func (tx *Tx) appendID(ctx context.Context, key string, id uint64) error {
	ids, err := tx.getIDs(ctx, key)
	if err != nil {
		return err
	}
	return tx.put(key, append(ids, id))
}

// Position returns ok == false for an unknown id.
func (tx *Tx) Position(ctx context.Context, id uint64) (Position, bool, error) {
	key := keyPosition(id)
	raw, ok, err := tx.get(ctx, key)
	if err != nil || !ok {
		return Position{}, false, err
	}
	var p Position
	if err := decode(key, raw, &p); err != nil {
		return Position{}, false, err
	}
	return p, true, nil
}

func (tx *Tx) PutPosition(p Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return tx.put(keyPosition(p.ID), p)
}

// NextID is the last id handed out; zero before the first position.
func (tx *Tx) NextID(ctx context.Context) (uint64, error) {
	return tx.getUint(ctx, keyNextID)
}

// AllocateID advances the counter and returns the new id. The first id
// is 1.
func (tx *Tx) AllocateID(ctx context.Context) (uint64, error) {
	last, err := tx.NextID(ctx)
	if err != nil {
		return 0, err
	}
	id := last + 1
	if id == 0 {
		return 0, fmt.Errorf("ledger: position id space exhausted")
	}
	if err := tx.put(keyNextID, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (tx *Tx) TraderPositions(ctx context.Context, a market.Account) ([]uint64, error) {
	return tx.getIDs(ctx, keyTraderPositions(a))
}

func (tx *Tx) AppendTraderPosition(ctx context.Context, a market.Account, id uint64) error {
	return tx.appendID(ctx, keyTraderPositions(a), id)
}

func (tx *Tx) TraderTxs(ctx context.Context, a market.Account) ([]uint64, error) {
	return tx.getIDs(ctx, keyTraderTxs(a))
}

func (tx *Tx) AppendTraderTx(ctx context.Context, a market.Account, txID uint64) error {
	return tx.appendID(ctx, keyTraderTxs(a), txID)
}

func (tx *Tx) GlobalTxs(ctx context.Context) ([]uint64, error) {
	return tx.getIDs(ctx, keyGlobalTxs)
}

func (tx *Tx) AppendGlobalTx(ctx context.Context, txID uint64) error {
	return tx.appendID(ctx, keyGlobalTxs, txID)
}

// ActivePositions lists open position ids in the order they were opened.
func (tx *Tx) ActivePositions(ctx context.Context) ([]uint64, error) {
	return tx.getIDs(ctx, keyActive)
}

func (tx *Tx) AddActive(ctx context.Context, id uint64) error {
	return tx.appendID(ctx, keyActive, id)
}

func (tx *Tx) RemoveActive(ctx context.Context, id uint64) error {
	ids, err := tx.ActivePositions(ctx)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return tx.put(keyActive, out)
}

func (tx *Tx) Deposit(ctx context.Context, a market.Account) (market.Amount, error) {
	v, err := tx.getUint(ctx, keyDeposit(a))
	return market.Amount(v), err
}

func (tx *Tx) SetDeposit(a market.Account, v market.Amount) error {
	return tx.put(keyDeposit(a), uint64(v))
}

func (tx *Tx) Quote(ctx context.Context, a market.Account) (market.Amount, error) {
	v, err := tx.getUint(ctx, keyQuote(a))
	return market.Amount(v), err
}

func (tx *Tx) SetQuote(a market.Account, v market.Amount) error {
	return tx.put(keyQuote(a), uint64(v))
}

// PriceOverride returns ok == false when no oracle price was ever set.
func (tx *Tx) PriceOverride(ctx context.Context, asset market.Asset) (market.Price, bool, error) {
	key := keyPrice(asset)
	raw, ok, err := tx.get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	var v uint64
	if err := decode(key, raw, &v); err != nil {
		return 0, false, err
	}
	return market.Price(v), true, nil
}

func (tx *Tx) SetPriceOverride(asset market.Asset, p market.Price) error {
	return tx.put(keyPrice(asset), uint64(p))
}

// Len is the number of staged writes.
func (tx *Tx) Len() int { return len(tx.writes) }

// Commit applies the staged writes in one batch and returns the values
// they replaced, so the caller can Revert them.
func (tx *Tx) Commit(ctx context.Context) (Undo, error) {
	if len(tx.writes) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]store.Entry, 0, len(keys))
	undo := make(Undo, 0, len(keys))
	for _, k := range keys {
		prev, ok, err := tx.l.store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("ledger commit: snapshot %s: %w", k, err)
		}
		if !ok {
			prev = nil
		}
		undo = append(undo, store.Entry{Key: k, Value: prev})
		entries = append(entries, store.Entry{Key: k, Value: tx.writes[k]})
	}

	if err := tx.l.store.Apply(ctx, entries); err != nil {
		return nil, fmt.Errorf("ledger commit: %w", err)
	}
	tx.writes = make(map[string][]byte)
	return undo, nil
}
