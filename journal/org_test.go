package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSettlementOrg(t *testing.T) {
	t.Parallel()

	closeT := time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC)
	rec := sampleSettlement(12, closeT)

	result := FormatSettlementOrg(rec)

	assert.Contains(t, result, "** Position: XLM long (12)")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":POSITION_ID: 12")
	assert.Contains(t, result, ":TRADER: alice")
	assert.Contains(t, result, ":AMOUNT: 0.001000")
	assert.Contains(t, result, ":ENTRY_PRICE: 0.150000")
	assert.Contains(t, result, ":EXIT_PRICE: 0.165000")
	assert.Contains(t, result, ":OPEN_TIME: 2024-03-15T13:20:30Z")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":PNL: 0.000100")
	assert.Contains(t, result, ":SETTLEMENT: 0.001100")
	assert.Contains(t, result, ":REASON: ManualClose")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Thesis")
	assert.Contains(t, result, "*** Review")
}

func TestFormatSettlementOrgNegativePnL(t *testing.T) {
	t.Parallel()

	rec := sampleSettlement(3, time.Now())
	rec.PnL = -2_500_000
	result := FormatSettlementOrg(rec)
	assert.Contains(t, result, ":PNL: -2.500000")
}

func TestFormatSettlementsOrg(t *testing.T) {
	t.Parallel()

	now := time.Now()
	result := FormatSettlementsOrg([]SettlementRecord{sampleSettlement(1, now), sampleSettlement(2, now)})

	assert.Equal(t, 2, strings.Count(result, "** Position:"))
	assert.Contains(t, result, ":END:\n\n*** Thesis")
	assert.Contains(t, result, "- \n\n\n** Position: XLM long (2)")

	assert.Equal(t, "", FormatSettlementsOrg(nil))
}

func TestShortID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"7", "7"},
		{"12345678", "12345678"},
		{"1234567890", "12345678"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortID(tt.input))
	}
}
