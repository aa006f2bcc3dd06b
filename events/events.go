// Package events carries engine notifications to whoever is listening:
// in-process subscribers, the log, and optionally a Kafka cluster.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/levtrader/pkg/id"
)

// Topics published by the engine.
const (
	PositionOpened = "position_opened"
	PositionClosed = "position_closed"
	FundsDeposited = "funds_deposited"
	SwapCompleted  = "swap_completed"
	PriceUpdated   = "price_updated"
)

// Event is the envelope every sink receives.
type Event struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// NewEvent stamps a payload with a fresh id and time.
func NewEvent(topic string, payload any) Event {
	now := time.Now().UTC()
	return Event{ID: id.NewAt(now), Topic: topic, Time: now, Payload: payload}
}

// Bus is implemented by every sink.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
}

// Payloads.

type Opened struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
	Direction string `json:"direction"`
}

type Closed struct {
	ID         uint64 `json:"id"`
	Trader     string `json:"trader"`
	PnL        int64  `json:"pnl"`
	Settlement uint64 `json:"settlement"`
}

type Deposited struct {
	Trader string `json:"trader"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

type Swapped struct {
	Trader string `json:"trader"`
	In     uint64 `json:"in"`
	Out    uint64 `json:"out"`
	Price  uint64 `json:"price"`
}

type PriceSet struct {
	Asset string `json:"asset"`
	Price uint64 `json:"price"`
}

// Multi fans one event out to several buses. Every bus is tried; the
// errors are joined.
type Multi []Bus

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
