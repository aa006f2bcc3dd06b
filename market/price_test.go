package market

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceString(t *testing.T) {
	assert.Equal(t, "0.150000", Price(150000).String())
	assert.Equal(t, "45.000000", Price(45_000_000).String())
	assert.Equal(t, "0.000001", Amount(1).String())
	assert.Equal(t, "18446744073709.551615", Amount(math.MaxUint64).String())
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		integer bool
		want    Price
		wantErr bool
	}{
		{"0.15", false, 150000, false},
		{"1", false, 1_000_000, false},
		{" 3000 ", false, 3_000_000_000, false},
		{"150000", true, 150000, false},
		{"0.0000001", false, 0, true},
		{"1.5", true, 0, true},
		{"-1", false, 0, true},
		{"abc", false, 0, true},
		{"99999999999999999999", true, 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePrice(tt.in, tt.integer)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMulDiv(t *testing.T) {
	q, ok := MulDiv(15000, 1000, 150000)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), q)

	// floor, not round
	q, ok = MulDiv(2, 1, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), q)

	// product overflows 64 bits but the quotient fits
	q, ok = MulDiv(math.MaxUint64, 1_000_000, 2_000_000)
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64/2), q)

	_, ok = MulDiv(math.MaxUint64, 2, 1)
	assert.False(t, ok)

	_, ok = MulDiv(1, 1, 0)
	assert.False(t, ok)
}

func TestAbsDiff(t *testing.T) {
	assert.Equal(t, uint64(15000), AbsDiff(165000, 150000))
	assert.Equal(t, uint64(15000), AbsDiff(150000, 165000))
	assert.Equal(t, uint64(0), AbsDiff(7, 7))
}

func TestDirectionParseAndJSON(t *testing.T) {
	d, err := ParseDirection(" Long ")
	require.NoError(t, err)
	assert.Equal(t, Long, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)

	b, err := json.Marshal(Short)
	require.NoError(t, err)
	assert.Equal(t, `"short"`, string(b))

	var back Direction
	require.NoError(t, json.Unmarshal([]byte(`"long"`), &back))
	assert.Equal(t, Long, back)

	assert.Error(t, json.Unmarshal([]byte(`"up"`), &back))

	_, err = json.Marshal(Direction(0))
	assert.Error(t, err)
}

func TestStatusParseAndJSON(t *testing.T) {
	s, err := ParseStatus("closed")
	require.NoError(t, err)
	assert.Equal(t, Closed, s)

	b, err := json.Marshal(Open)
	require.NoError(t, err)
	assert.Equal(t, `"open"`, string(b))

	var back Status
	assert.Error(t, json.Unmarshal([]byte(`"none"`), &back))
}

func TestNewAsset(t *testing.T) {
	a, err := NewAsset(" xlm ")
	require.NoError(t, err)
	assert.Equal(t, XLM, a)

	_, err = NewAsset("")
	assert.Error(t, err)
	_, err = NewAsset("BTC-USD")
	assert.Error(t, err)
}
