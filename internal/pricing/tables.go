package pricing

import "github.com/shopspring/decimal"

// d builds a rate literal for the tables below.
func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func openaiCache(cachedPer1M float64) Caching {
	return Caching{Style: CacheOpenAI, CachedPer1M: d(cachedPer1M)}
}

func anthropicCache(writePer1M, readPer1M float64) Caching {
	return Caching{Style: CacheAnthropic, WritePer1M: d(writePer1M), ReadPer1M: d(readPer1M)}
}

func googleCache(tiers ...CacheTier) Caching {
	return Caching{Style: CacheGoogle, Tiers: tiers}
}

func flat(inputPer1M, outputPer1M float64, caching Caching) ModelInfo {
	return ModelInfo{InputPer1M: d(inputPer1M), OutputPer1M: d(outputPer1M), Caching: caching}
}

func tiered(caching Caching, tiers ...Tier) ModelInfo {
	return ModelInfo{Tiers: tiers, Caching: caching}
}

var models = map[string]ModelInfo{
	// OpenAI
	"o4-mini":           flat(1.1, 4.4, openaiCache(0.275)),
	"o3":                flat(2.0, 8.0, openaiCache(0.5)),
	"o3-pro":            flat(20.0, 80.0, Caching{}),
	"o3-mini":           flat(1.1, 4.4, openaiCache(0.55)),
	"o1":                flat(15.0, 60.0, openaiCache(7.5)),
	"o1-preview":        flat(15.0, 60.0, openaiCache(7.5)),
	"o1-mini":           flat(1.1, 4.4, openaiCache(0.55)),
	"o1-pro":            flat(150.0, 600.0, Caching{}),
	"gpt-4.1":           flat(2.0, 8.0, openaiCache(0.5)),
	"gpt-4o":            flat(2.5, 10.0, openaiCache(1.25)),
	"gpt-4o-2024-05-13": flat(5.0, 10.0, Caching{}),
	"gpt-4.1-mini":      flat(0.4, 1.6, openaiCache(0.1)),
	"gpt-4.1-nano":      flat(0.1, 0.4, openaiCache(0.025)),
	"gpt-4o-mini":       flat(0.15, 0.6, openaiCache(0.075)),
	"codex-mini-latest": flat(1.5, 6.0, openaiCache(0.375)),
	"gpt-4-turbo":       flat(10.0, 30.0, Caching{}),
	"gpt-5":             flat(1.25, 10.0, openaiCache(0.125)),
	"gpt-5-mini":        flat(0.25, 2.0, openaiCache(0.025)),
	"gpt-5-nano":        flat(0.05, 0.4, openaiCache(0.005)),
	"gpt-5-codex-mini":  flat(0.25, 2.0, openaiCache(0.025)),

	// Anthropic
	"claude-opus-4-1":   flat(15.0, 75.0, anthropicCache(18.75, 1.5)),
	"claude-opus-4":     flat(15.0, 75.0, anthropicCache(18.75, 1.5)),
	"claude-sonnet-4":   flat(3.0, 15.0, anthropicCache(3.75, 0.3)),
	"claude-sonnet-4-5": flat(3.0, 15.0, anthropicCache(3.75, 0.3)),
	"claude-3-7-sonnet": flat(3.0, 15.0, anthropicCache(3.75, 0.3)),
	"claude-3-5-sonnet": flat(3.0, 15.0, anthropicCache(3.75, 0.3)),
	"claude-3-5-haiku":  flat(0.8, 4.0, anthropicCache(1.0, 0.08)),
	"claude-haiku-4-5":  flat(1.0, 5.0, anthropicCache(1.25, 0.10)),
	"claude-3-opus":     flat(15.0, 75.0, anthropicCache(18.75, 1.5)),
	"claude-3-haiku":    flat(0.25, 1.25, anthropicCache(0.3, 0.03)),

	// Google
	"gemini-3-pro-preview-11-2025": tiered(
		googleCache(
			CacheTier{MaxTokens: 200_000, CachedPer1M: d(0.31)},
			CacheTier{CachedPer1M: d(0.625)},
		),
		Tier{MaxTokens: 200_000, InputPer1M: d(1.25), OutputPer1M: d(10.0)},
		Tier{InputPer1M: d(2.5), OutputPer1M: d(15.0)},
	),
	"gemini-2.5-pro": tiered(
		googleCache(
			CacheTier{MaxTokens: 200_000, CachedPer1M: d(0.31)},
			CacheTier{CachedPer1M: d(0.625)},
		),
		Tier{MaxTokens: 200_000, InputPer1M: d(1.25), OutputPer1M: d(10.0)},
		Tier{InputPer1M: d(2.5), OutputPer1M: d(15.0)},
	),
	"gemini-2.5-flash": flat(0.3, 2.5,
		googleCache(CacheTier{CachedPer1M: d(0.075)})),
	"gemini-2.5-flash-lite": flat(0.1, 0.4,
		googleCache(CacheTier{CachedPer1M: d(0.025)})),
	"gemini-2.0-pro-exp-02-05": flat(0.0, 0.0,
		googleCache(CacheTier{CachedPer1M: d(0.0)})),
	"gemini-2.0-flash": flat(0.1, 0.4,
		googleCache(CacheTier{CachedPer1M: d(0.025)})),
	"gemini-2.0-flash-lite": flat(0.075, 0.3, Caching{}),
	"gemini-1.5-flash": tiered(
		googleCache(
			CacheTier{MaxTokens: 128_000, CachedPer1M: d(0.01875)},
			CacheTier{CachedPer1M: d(0.0375)},
		),
		Tier{MaxTokens: 128_000, InputPer1M: d(0.075), OutputPer1M: d(0.3)},
		Tier{InputPer1M: d(0.15), OutputPer1M: d(0.6)},
	),
	"gemini-1.5-flash-8b": tiered(
		googleCache(
			CacheTier{MaxTokens: 128_000, CachedPer1M: d(0.01)},
			CacheTier{CachedPer1M: d(0.02)},
		),
		Tier{MaxTokens: 128_000, InputPer1M: d(0.0375), OutputPer1M: d(0.15)},
		Tier{InputPer1M: d(0.075), OutputPer1M: d(0.3)},
	),
	"gemini-1.5-pro": tiered(
		googleCache(
			CacheTier{MaxTokens: 128_000, CachedPer1M: d(0.3125)},
			CacheTier{CachedPer1M: d(0.625)},
		),
		Tier{MaxTokens: 128_000, InputPer1M: d(1.25), OutputPer1M: d(5.0)},
		Tier{InputPer1M: d(2.5), OutputPer1M: d(10.0)},
	),
}

// aliases maps dated and renamed provider strings to canonical table
// keys. Identity mappings are implicit (Lookup tries the table first).
var aliases = map[string]string{
	// OpenAI
	"o4-mini-2025-04-16":      "o4-mini",
	"o3-2025-04-16":           "o3",
	"o3-pro-2025-06-10":       "o3-pro",
	"o3-mini-2025-01-31":      "o3-mini",
	"o1-2024-12-17":           "o1",
	"o1-preview-2024-09-12":   "o1-preview",
	"o1-mini-2024-09-12":      "o1-mini",
	"o1-pro-2025-03-19":       "o1-pro",
	"gpt-4.1-2025-04-14":      "gpt-4.1",
	"gpt-4o-2024-11-20":       "gpt-4o",
	"gpt-4o-2024-08-06":       "gpt-4o",
	"gpt-4.1-mini-2025-04-14": "gpt-4.1-mini",
	"gpt-4.1-nano-2025-04-14": "gpt-4.1-nano",
	"gpt-4o-mini-2024-07-18":  "gpt-4o-mini",
	"gpt-4-turbo-2024-04-09":  "gpt-4-turbo",
	"gpt-5-codex":             "gpt-5",
	"gpt-5-2025-08-07":        "gpt-5",
	"gpt-5-mini-2025-08-07":   "gpt-5-mini",
	"gpt-5-nano-2025-08-07":   "gpt-5-nano",

	// Anthropic
	"claude-opus-4-20250514":     "claude-opus-4",
	"claude-opus-4-0":            "claude-opus-4",
	"claude-opus-4.1":            "claude-opus-4-1",
	"claude-opus-4-1-20250805":   "claude-opus-4-1",
	"claude-sonnet-4-20250514":   "claude-sonnet-4",
	"claude-sonnet-4-0":          "claude-sonnet-4",
	"claude-sonnet-4.5":          "claude-sonnet-4-5",
	"claude-sonnet-4-5-20250929": "claude-sonnet-4-5",
	"claude-3-7-sonnet-20250219": "claude-3-7-sonnet",
	"claude-3-7-sonnet-latest":   "claude-3-7-sonnet",
	"claude-3-5-sonnet-20241022": "claude-3-5-sonnet",
	"claude-3-5-sonnet-latest":   "claude-3-5-sonnet",
	"claude-3-5-sonnet-20240620": "claude-3-5-sonnet",
	"claude-3-5-haiku-20241022":  "claude-3-5-haiku",
	"claude-3-5-haiku-latest":    "claude-3-5-haiku",
	"claude-haiku-4.5":           "claude-haiku-4-5",
	"claude-haiku-4-5-20251001":  "claude-haiku-4-5",
	"claude-3-opus-20240229":     "claude-3-opus",
	"claude-3-haiku-20240307":    "claude-3-haiku",

	// Google
	"gemini-2.5-pro-preview-06-05":   "gemini-2.5-pro",
	"gemini-2.5-pro-preview-05-06":   "gemini-2.5-pro",
	"gemini-2.5-pro-preview-03-25":   "gemini-2.5-pro",
	"gemini-2.5-flash-preview-05-20": "gemini-2.5-flash",
	"gemini-2.5-flash-preview-04-17": "gemini-2.5-flash",
	"gemini-2.5-flash-lite-06-17":    "gemini-2.5-flash-lite",
	"gemini-exp-1206":                "gemini-2.0-pro-exp-02-05",
	"gemini-2.0-flash-001":           "gemini-2.0-flash",
	"gemini-2.0-flash-exp":           "gemini-2.0-flash",
	"gemini-2.0-flash-lite-001":      "gemini-2.0-flash-lite",
	"gemini-1.5-flash-latest":        "gemini-1.5-flash",
	"gemini-1.5-flash-001":           "gemini-1.5-flash",
	"gemini-1.5-flash-002":           "gemini-1.5-flash",
	"gemini-1.5-flash-8b-latest":     "gemini-1.5-flash-8b",
	"gemini-1.5-flash-8b-001":        "gemini-1.5-flash-8b",
	"gemini-1.5-flash-8b-exp-0924":   "gemini-1.5-flash-8b",
	"gemini-1.5-flash-8b-exp-0827":   "gemini-1.5-flash-8b",
	"gemini-1.5-pro-latest":          "gemini-1.5-pro",
	"gemini-1.5-pro-001":             "gemini-1.5-pro",
	"gemini-1.5-pro-002":             "gemini-1.5-pro",
	"gemini-1.5-pro-exp-0827":        "gemini-1.5-pro",
	"gemini-1.5-pro-exp-0801":        "gemini-1.5-pro",
}
