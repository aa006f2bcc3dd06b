package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/levtrader/market"
)

type fakeOverrides struct {
	prices map[market.Asset]market.Price
	err    error
}

func (f fakeOverrides) PriceOverride(_ context.Context, a market.Asset) (market.Price, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	p, ok := f.prices[a]
	return p, ok, nil
}

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		asset market.Asset
		want  market.Price
	}{
		{market.XLM, 150000},
		{market.USDC, 1000000},
		{market.USDT, 1000000},
		{market.BTC, 45000000},
		{market.ETH, 3000000},
		{"DOGE", 150000},
		{"", 150000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Default(tt.asset), "asset %q", tt.asset)
	}
	assert.Len(t, Known(), 5)
}

func TestResolverPrefersOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewResolver(fakeOverrides{prices: map[market.Asset]market.Price{market.XLM: 160000}})

	p, err := r.Price(ctx, market.XLM)
	require.NoError(t, err)
	assert.Equal(t, market.Price(160000), p)

	p, err = r.Price(ctx, market.BTC)
	require.NoError(t, err)
	assert.Equal(t, market.Price(45000000), p)

	_, ok, err := r.Oracle(ctx, market.ETH)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolverStorageError(t *testing.T) {
	t.Parallel()

	r := NewResolver(fakeOverrides{err: errors.New("boom")})
	_, err := r.Price(context.Background(), market.XLM)
	assert.ErrorContains(t, err, "boom")
}

type constSource market.Price

func (c constSource) Price(context.Context, market.Asset) (market.Price, error) {
	return market.Price(c), nil
}

func TestResolverNilOverridesAndCustomFallback(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil).WithFallback(constSource(42))
	p, err := r.Price(context.Background(), "ANY")
	require.NoError(t, err)
	assert.Equal(t, market.Price(42), p)
}
