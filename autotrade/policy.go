package autotrade

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/levtrader/market"
	"github.com/rustyeddy/levtrader/pricing"
)

// DirectionPolicy picks the side of a new position.
type DirectionPolicy interface {
	Direction(asset market.Asset, current market.Price) market.Direction
}

// PolicyFunc adapts a function to DirectionPolicy.
type PolicyFunc func(asset market.Asset, current market.Price) market.Direction

func (f PolicyFunc) Direction(asset market.Asset, current market.Price) market.Direction {
	return f(asset, current)
}

// AlwaysLong goes long on everything. It is the default policy and is
// deliberately simple.
type AlwaysLong struct{}

func (AlwaysLong) Direction(market.Asset, market.Price) market.Direction { return market.Long }

// AlwaysShort is the mirror of AlwaysLong.
type AlwaysShort struct{}

func (AlwaysShort) Direction(market.Asset, market.Price) market.Direction { return market.Short }

// MeanRevert bets that the price returns to its reference level: short
// above the reference table, long at or below it.
type MeanRevert struct{}

func (MeanRevert) Direction(asset market.Asset, current market.Price) market.Direction {
	if current > pricing.Default(asset) {
		return market.Short
	}
	return market.Long
}

const DefaultStrategy = "always-long"

var (
	mu       sync.RWMutex
	registry = map[string]DirectionPolicy{
		"always-long":  AlwaysLong{},
		"always-short": AlwaysShort{},
		"mean-revert":  MeanRevert{},
	}
)

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces a named policy.
func Register(name string, p DirectionPolicy) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = p
}

// PolicyByName looks up a policy. Empty or unknown names fall back to
// the default policy; ok reports whether name was found.
func PolicyByName(name string) (p DirectionPolicy, ok bool) {
	mu.RLock()
	defer mu.RUnlock()
	if p, ok = registry[normalize(name)]; ok {
		return p, true
	}
	return registry[DefaultStrategy], false
}

// Lookup is PolicyByName without the fallback.
func Lookup(name string) (DirectionPolicy, error) {
	p, ok := PolicyByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the registered strategies, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DecideDirection resolves strategy and asks it for a side.
func DecideDirection(strategy string, asset market.Asset, current market.Price) market.Direction {
	p, _ := PolicyByName(strategy)
	return p.Direction(asset, current)
}
