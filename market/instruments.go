package market

import (
	"fmt"
	"strings"
)

// Asset is a short interned instrument symbol such as XLM, USDC or BTC.
type Asset string

// Known symbols quoted by the static price table.
const (
	XLM  Asset = "XLM"
	USDC Asset = "USDC"
	USDT Asset = "USDT"
	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
)

// NewAsset normalizes a user supplied symbol.
func NewAsset(s string) (Asset, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("asset symbol is required")
	}
	if len(s) > 12 {
		return "", fmt.Errorf("asset symbol %q is too long", s)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("asset symbol %q has invalid character %q", s, r)
		}
	}
	return Asset(s), nil
}

func (a Asset) String() string { return string(a) }

// Account is an opaque, already authenticated trader identity.
type Account string

func (a Account) String() string { return string(a) }
