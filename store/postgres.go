package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS levtrader_kv (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);
`

// Postgres stores keys in one table; batches run in a read-committed
// transaction on the pool.
type Postgres struct {
	pool   *pgxpool.Pool
	prefix string
}

func NewPostgres(ctx context.Context, dsn, prefix string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres store: pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres store: ping")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres store: schema")
	}
	return &Postgres{pool: pool, prefix: prefix}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM levtrader_kv WHERE key = $1`, p.prefix+key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "postgres store: get %q", key)
	}
	return v, true, nil
}

func (p *Postgres) Apply(ctx context.Context, entries []Entry) error {
	return p.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, e := range entries {
			if e.Value == nil {
				if _, err := tx.Exec(ctx, `DELETE FROM levtrader_kv WHERE key = $1`, p.prefix+e.Key); err != nil {
					return errors.Wrapf(err, "postgres store: delete %q", e.Key)
				}
				continue
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO levtrader_kv (key, value) VALUES ($1, $2)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
				p.prefix+e.Key, e.Value)
			if err != nil {
				return errors.Wrapf(err, "postgres store: set %q", e.Key)
			}
		}
		return nil
	})
}

func (p *Postgres) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return fn(ctx, tx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
