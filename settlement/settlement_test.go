package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/levtrader/market"
)

func TestTreasuryTransfer(t *testing.T) {
	ctx := context.Background()
	tr := NewTreasury(nil)
	tr.Credit("escrow", market.USDC, 5000)

	require.NoError(t, tr.Transfer(ctx, "escrow", "alice", market.USDC, 1100))
	assert.Equal(t, market.Amount(3900), tr.Balance("escrow", market.USDC))
	assert.Equal(t, market.Amount(1100), tr.Balance("alice", market.USDC))

	h := tr.History()
	require.Len(t, h, 1)
	assert.Equal(t, Transfer{From: "escrow", To: "alice", Asset: market.USDC, Amount: 1100}, h[0])
}

func TestTreasuryRejects(t *testing.T) {
	ctx := context.Background()
	tr := NewTreasury(nil)
	tr.Credit("escrow", market.USDC, 100)

	err := tr.Transfer(ctx, "escrow", "bob", market.USDC, 101)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = tr.Transfer(ctx, "escrow", "bob", market.XLM, 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = tr.Transfer(ctx, "escrow", "bob", market.USDC, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, market.Amount(100), tr.Balance("escrow", market.USDC))
	assert.Empty(t, tr.History())
}

func TestGatewayFunc(t *testing.T) {
	var got market.Amount
	var g Gateway = GatewayFunc(func(_ context.Context, _, _ market.Account, _ market.Asset, amt market.Amount) error {
		got = amt
		return nil
	})
	require.NoError(t, g.Transfer(context.Background(), "a", "b", market.USDC, 7))
	assert.Equal(t, market.Amount(7), got)
}
