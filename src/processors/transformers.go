package processors

import (
	"strconv"
	"strings"
	"time"

	"github.com/username/tradevault/backend/src/models"
)

// tradeDateFormats is tried in fixed priority order; the first format that
// yields a valid calendar date wins.
var tradeDateFormats = []string{
	"01/02/2006", // MM/DD/YYYY
	"2006-01-02", // YYYY-MM-DD
	"02-01-2006", // DD-MM-YYYY
	"02.01.2006", // DD.MM.YYYY
}

// genericDateFormats are the fallback formats attempted after the priority
// list is exhausted.
var genericDateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006 15:04",
	"2006/01/02",
}

// ParseTradeDate parses a trade date string. Unparseable input yields the
// zero time, which is rejected by the validator rather than silently dropped.
func ParseTradeDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range tradeDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	for _, layout := range genericDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var clockFormats = []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"}

// ParseTimeOfDay parses an optional time-of-day column and merges it into
// the given date. The date is returned unchanged when the value is empty or
// unparseable.
func ParseTimeOfDay(date time.Time, s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || date.IsZero() {
		return date
	}
	for _, layout := range clockFormats {
		if c, err := time.Parse(layout, s); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(),
				c.Hour(), c.Minute(), c.Second(), 0, date.Location())
		}
	}
	return date
}

var longSynonyms = map[string]bool{
	"buy": true, "long": true, "b": true, "l": true,
	"1": true, "true": true, "bullish": true, "up": true,
}

var shortSynonyms = map[string]bool{
	"sell": true, "short": true, "s": true,
	"-1": true, "false": true, "bearish": true, "down": true,
}

// ParseDirection normalizes a trade direction string. Unmatched input
// defaults to long.
func ParseDirection(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if shortSynonyms[v] {
		return models.DirectionShort
	}
	if longSynonyms[v] {
		return models.DirectionLong
	}
	return models.DirectionLong
}

// ParseNumeric normalizes a free-form numeric string: every character except
// digits, comma, dot and minus is stripped, commas become decimal points,
// and when several dot groups remain only the last one is kept as the
// decimal point. Unparseable or empty input yields zero.
func ParseNumeric(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if parts := strings.Split(cleaned, "."); len(parts) > 2 {
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

var marketSynonyms = map[string]string{
	"fx": models.MarketForex, "forex": models.MarketForex, "currency": models.MarketForex, "currencies": models.MarketForex,
	"fut": models.MarketFutures, "future": models.MarketFutures, "futures": models.MarketFutures,
	"stock": models.MarketStocks, "stocks": models.MarketStocks, "equity": models.MarketStocks, "equities": models.MarketStocks, "shares": models.MarketStocks,
	"crypto": models.MarketCrypto, "cryptocurrency": models.MarketCrypto, "coin": models.MarketCrypto,
	"opt": models.MarketOptions, "option": models.MarketOptions, "options": models.MarketOptions,
}

// ParseMarketType normalizes a market type string. Unrecognized input
// defaults to futures.
func ParseMarketType(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if m, ok := marketSynonyms[v]; ok {
		return m
	}
	return models.MarketFutures
}
