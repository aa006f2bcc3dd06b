package journal

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatSettlementOrg renders a SettlementRecord as an Org-mode block.
// Structured facts live in the PROPERTIES drawer so they stay searchable;
// the narrative headings are left for the trader to fill in.
func FormatSettlementOrg(r SettlementRecord) string {
	heading := fmt.Sprintf("** Position: %s %s (%s)", r.Asset, r.Direction, shortID(strconv.FormatUint(r.PositionID, 10)))
	open := r.OpenTime.UTC().Format(time.RFC3339)
	close := r.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":POSITION_ID: %d\n", r.PositionID))
	b.WriteString(fmt.Sprintf(":TRADER: %s\n", r.Trader))
	b.WriteString(fmt.Sprintf(":ASSET: %s\n", r.Asset))
	b.WriteString(fmt.Sprintf(":DIRECTION: %s\n", r.Direction))
	b.WriteString(fmt.Sprintf(":AMOUNT: %s\n", micros(r.Amount)))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %s\n", micros(r.EntryPrice)))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %s\n", micros(r.ExitPrice)))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", close))
	b.WriteString(fmt.Sprintf(":PNL: %s\n", decimal.New(r.PnL, -6).StringFixed(6)))
	b.WriteString(fmt.Sprintf(":SETTLEMENT: %s\n", micros(r.Settlement)))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", r.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatSettlementsOrg renders multiple records separated by blank lines.
func FormatSettlementsOrg(recs []SettlementRecord) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatSettlementOrg(r))
	}
	return b.String()
}

func micros(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -6).StringFixed(6)
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
