// Package pricing computes per-message dollar cost from token usage.
//
// Rates are tracked per million tokens as decimals so repeated
// aggregation never accumulates float drift. Providers differ in shape:
// flat or tiered base rates, and three cache-billing styles.
package pricing

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Piebald-AI/splitrail/pkg/logging"
)

// Tier is one rung of a tiered price ladder. MaxTokens is the rung's
// capacity; 0 means unlimited (the final rung).
type Tier struct {
	MaxTokens   uint64
	InputPer1M  decimal.Decimal
	OutputPer1M decimal.Decimal
}

// CacheTier is one rung of a tiered cache-read ladder.
type CacheTier struct {
	MaxTokens   uint64
	CachedPer1M decimal.Decimal
}

// CacheStyle selects a provider's cache-billing model.
type CacheStyle int

const (
	// CacheNone means the model bills no cache traffic.
	CacheNone CacheStyle = iota
	// CacheOpenAI bills cache reads at a discounted input rate;
	// creation is free.
	CacheOpenAI
	// CacheAnthropic bills cache creation at a surcharge and reads at
	// a discount.
	CacheAnthropic
	// CacheGoogle bills cache reads on a tiered ladder.
	CacheGoogle
)

// Caching describes a model's cache billing. Only the fields for its
// Style are set.
type Caching struct {
	Style       CacheStyle
	CachedPer1M decimal.Decimal
	WritePer1M  decimal.Decimal
	ReadPer1M   decimal.Decimal
	Tiers       []CacheTier
}

// ModelInfo is one model's complete price card. A non-empty Tiers
// ladder overrides the flat InputPer1M/OutputPer1M rates.
type ModelInfo struct {
	InputPer1M  decimal.Decimal
	OutputPer1M decimal.Decimal
	Tiers       []Tier
	Caching     Caching
}

// Lookup resolves a model name to its price card: exact canonical
// match, then the alias table, then the longest canonical name that
// prefixes the given name (catches dated variants the alias table
// hasn't learned yet).
func Lookup(name string) (ModelInfo, bool) {
	if info, ok := models[name]; ok {
		return info, true
	}
	if canonical, ok := aliases[name]; ok {
		return models[canonical], true
	}
	best := ""
	for canonical := range models {
		if len(canonical) > len(best) && strings.HasPrefix(name, canonical+"-") {
			best = canonical
		}
	}
	if best != "" {
		return models[best], true
	}
	return ModelInfo{}, false
}

// Canonical returns every canonical model name in sorted order.
func Canonical() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var warnedModels sync.Map

func warnUnknown(model string) {
	if _, seen := warnedModels.LoadOrStore(model, struct{}{}); !seen {
		logging.Warn("unknown model, cost defaults to $0", map[string]any{"model": model})
	}
}

// tokensCost prices a token count at a per-million rate. Shift(-6) is
// an exact base-10 exponent move, so no precision is lost.
func tokensCost(tokens uint64, per1M decimal.Decimal) decimal.Decimal {
	return decimal.NewFromUint64(tokens).Mul(per1M).Shift(-6)
}

// InputCost prices input tokens for a model. Unknown models cost $0.
func InputCost(model string, tokens uint64) decimal.Decimal {
	info, ok := Lookup(model)
	if !ok {
		warnUnknown(model)
		return decimal.Zero
	}
	if len(info.Tiers) == 0 {
		return tokensCost(tokens, info.InputPer1M)
	}
	return tieredCost(tokens, info.Tiers, true)
}

// OutputCost prices output tokens for a model. Unknown models cost $0.
func OutputCost(model string, tokens uint64) decimal.Decimal {
	info, ok := Lookup(model)
	if !ok {
		warnUnknown(model)
		return decimal.Zero
	}
	if len(info.Tiers) == 0 {
		return tokensCost(tokens, info.OutputPer1M)
	}
	return tieredCost(tokens, info.Tiers, false)
}

// CacheCost prices cache traffic per the model's billing style.
func CacheCost(model string, creationTokens, readTokens uint64) decimal.Decimal {
	info, ok := Lookup(model)
	if !ok {
		warnUnknown(model)
		return decimal.Zero
	}
	switch info.Caching.Style {
	case CacheOpenAI:
		return tokensCost(readTokens, info.Caching.CachedPer1M)
	case CacheAnthropic:
		creation := tokensCost(creationTokens, info.Caching.WritePer1M)
		read := tokensCost(readTokens, info.Caching.ReadPer1M)
		return creation.Add(read)
	case CacheGoogle:
		return tieredCacheCost(readTokens, info.Caching.Tiers)
	default:
		return decimal.Zero
	}
}

// TotalCost prices one message's full token usage.
func TotalCost(model string, input, output, cacheCreation, cacheRead uint64) decimal.Decimal {
	return InputCost(model, input).
		Add(OutputCost(model, output)).
		Add(CacheCost(model, cacheCreation, cacheRead))
}

// tieredCost walks the ladder, consuming each rung's capacity before
// moving to the next (marginal pricing).
func tieredCost(tokens uint64, tiers []Tier, input bool) decimal.Decimal {
	total := decimal.Zero
	remaining := tokens
	for _, tier := range tiers {
		if remaining == 0 {
			break
		}
		inTier := remaining
		if tier.MaxTokens > 0 && inTier > tier.MaxTokens {
			inTier = tier.MaxTokens
		}
		rate := tier.InputPer1M
		if !input {
			rate = tier.OutputPer1M
		}
		total = total.Add(tokensCost(inTier, rate))
		remaining -= inTier
	}
	return total
}

func tieredCacheCost(tokens uint64, tiers []CacheTier) decimal.Decimal {
	total := decimal.Zero
	remaining := tokens
	for _, tier := range tiers {
		if remaining == 0 {
			break
		}
		inTier := remaining
		if tier.MaxTokens > 0 && inTier > tier.MaxTokens {
			inTier = tier.MaxTokens
		}
		total = total.Add(tokensCost(inTier, tier.CachedPer1M))
		remaining -= inTier
	}
	return total
}
