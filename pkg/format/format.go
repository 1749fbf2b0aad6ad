// Package format renders numbers, costs, and bucket dates for display.
package format

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Options control number rendering. Human wins over Comma when both are
// set.
type Options struct {
	Comma         bool
	Human         bool
	Locale        string
	DecimalPlaces int
}

func localeTag(locale string) language.Tag {
	switch locale {
	case "de":
		return language.German
	case "fr":
		return language.French
	case "es":
		return language.Spanish
	case "it":
		return language.Italian
	case "ja":
		return language.Japanese
	case "ko":
		return language.Korean
	case "zh":
		return language.Chinese
	default:
		return language.English
	}
}

// Number renders a counter. Human mode abbreviates with k/m/b/t
// suffixes, comma mode groups digits per the configured locale.
func Number(n uint64, opts Options) string {
	if opts.Human {
		return humanize(n, opts.DecimalPlaces)
	}
	if opts.Comma {
		return message.NewPrinter(localeTag(opts.Locale)).Sprintf("%d", n)
	}
	return strconv.FormatUint(n, 10)
}

func humanize(n uint64, places int) string {
	if places < 0 {
		places = 0
	}
	switch {
	case n >= 1_000_000_000_000:
		return strconv.FormatFloat(float64(n)/1e12, 'f', places, 64) + "t"
	case n >= 1_000_000_000:
		return strconv.FormatFloat(float64(n)/1e9, 'f', places, 64) + "b"
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1e6, 'f', places, 64) + "m"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1e3, 'f', places, 64) + "k"
	default:
		return strconv.FormatUint(n, 10)
	}
}

// Cost renders a dollar amount with two decimal places.
func Cost(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Date renders a YYYY-MM-DD bucket date as M/D/YYYY without zero
// padding. Today's date (relative to now) gets a trailing asterisk.
// Unparseable input is returned unchanged.
func Date(date string, now time.Time) string {
	if date == "unknown" {
		return "Unknown"
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	s := fmt.Sprintf("%d/%d/%d", int(parsed.Month()), parsed.Day(), parsed.Year())
	if date == now.Format("2006-01-02") {
		s += "*"
	}
	return s
}
