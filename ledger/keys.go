package ledger

import (
	"strconv"

	"github.com/rustyeddy/levtrader/market"
)

const (
	keyNextID    = "positions:seq"
	keyActive    = "positions:active"
	keyGlobalTxs = "txs:global"
)

func keyPosition(id uint64) string {
	return "position:" + strconv.FormatUint(id, 10)
}

func keyTraderPositions(a market.Account) string {
	return "trader:" + string(a) + ":positions"
}

func keyTraderTxs(a market.Account) string {
	return "trader:" + string(a) + ":txs"
}

func keyDeposit(a market.Account) string {
	return "trader:" + string(a) + ":deposit"
}

func keyQuote(a market.Account) string {
	return "trader:" + string(a) + ":quote"
}

func keyPrice(asset market.Asset) string {
	return "price:" + string(asset)
}
