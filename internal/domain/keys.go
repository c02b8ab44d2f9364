package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const noStartDate = "none"

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func expectLen(key NaturalKey, n int, what string) error {
	if len(key) != n {
		return fmt.Errorf("%w: %s key needs %d parts, got %d", ErrInvalidKey, what, n, len(key))
	}
	if key[0] == "" {
		return fmt.Errorf("%w: %s key has empty ticker", ErrInvalidKey, what)
	}
	return nil
}

// PriceQuery selects daily prices for a ticker over a closed date range.
type PriceQuery struct {
	Ticker    string
	StartDate string
	EndDate   string
}

// Key returns (ticker, start, end).
func (q PriceQuery) Key() NaturalKey {
	return NaturalKey{normalizeTicker(q.Ticker), q.StartDate, q.EndDate}
}

// ParsePriceQuery reverses PriceQuery.Key.
func ParsePriceQuery(key NaturalKey) (PriceQuery, error) {
	if err := expectLen(key, 3, "price"); err != nil {
		return PriceQuery{}, err
	}
	return PriceQuery{Ticker: key[0], StartDate: key[1], EndDate: key[2]}, nil
}

// MetricsQuery selects financial metrics reported on or before EndDate.
type MetricsQuery struct {
	Ticker  string
	EndDate string
	Period  string
	Limit   int
}

// Key returns (ticker, period, end, limit).
func (q MetricsQuery) Key() NaturalKey {
	period := q.Period
	if period == "" {
		period = "ttm"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	return NaturalKey{normalizeTicker(q.Ticker), period, q.EndDate, strconv.Itoa(limit)}
}

// ParseMetricsQuery reverses MetricsQuery.Key.
func ParseMetricsQuery(key NaturalKey) (MetricsQuery, error) {
	if err := expectLen(key, 4, "metrics"); err != nil {
		return MetricsQuery{}, err
	}
	limit, err := strconv.Atoi(key[3])
	if err != nil {
		return MetricsQuery{}, fmt.Errorf("%w: limit %q", ErrInvalidKey, key[3])
	}
	return MetricsQuery{Ticker: key[0], Period: key[1], EndDate: key[2], Limit: limit}, nil
}

// DatedQuery selects news or insider trades between an optional start date
// and an end date. It backs both the company-news and insider-trades categories.
type DatedQuery struct {
	Ticker    string
	StartDate string // empty means unbounded
	EndDate   string
	Limit     int
}

// Key returns (ticker, start|"none", end, limit).
func (q DatedQuery) Key() NaturalKey {
	start := q.StartDate
	if start == "" {
		start = noStartDate
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	return NaturalKey{normalizeTicker(q.Ticker), start, q.EndDate, strconv.Itoa(limit)}
}

// ParseDatedQuery reverses DatedQuery.Key.
func ParseDatedQuery(key NaturalKey) (DatedQuery, error) {
	if err := expectLen(key, 4, "dated"); err != nil {
		return DatedQuery{}, err
	}
	limit, err := strconv.Atoi(key[3])
	if err != nil {
		return DatedQuery{}, fmt.Errorf("%w: limit %q", ErrInvalidKey, key[3])
	}
	start := key[1]
	if start == noStartDate {
		start = ""
	}
	return DatedQuery{Ticker: key[0], StartDate: start, EndDate: key[2], Limit: limit}, nil
}

// LineItemsQuery searches named financial statement line items.
type LineItemsQuery struct {
	Ticker    string
	LineItems []string
	EndDate   string
	Period    string
	Limit     int
}

// Key returns (ticker, sorted items, end, period, limit). Item order does
// not change the result set, so it is normalized away.
func (q LineItemsQuery) Key() NaturalKey {
	items := make([]string, 0, len(q.LineItems))
	for _, it := range q.LineItems {
		if it = strings.TrimSpace(it); it != "" {
			items = append(items, it)
		}
	}
	sort.Strings(items)
	period := q.Period
	if period == "" {
		period = "ttm"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	return NaturalKey{normalizeTicker(q.Ticker), strings.Join(items, ","), q.EndDate, period, strconv.Itoa(limit)}
}

// ParseLineItemsQuery reverses LineItemsQuery.Key.
func ParseLineItemsQuery(key NaturalKey) (LineItemsQuery, error) {
	if err := expectLen(key, 5, "line items"); err != nil {
		return LineItemsQuery{}, err
	}
	limit, err := strconv.Atoi(key[4])
	if err != nil {
		return LineItemsQuery{}, fmt.Errorf("%w: limit %q", ErrInvalidKey, key[4])
	}
	var items []string
	if key[1] != "" {
		items = strings.Split(key[1], ",")
	}
	return LineItemsQuery{Ticker: key[0], LineItems: items, EndDate: key[2], Period: key[3], Limit: limit}, nil
}

// FactsQuery selects the current company facts for a ticker.
type FactsQuery struct {
	Ticker string
}

// Key returns (ticker).
func (q FactsQuery) Key() NaturalKey {
	return NaturalKey{normalizeTicker(q.Ticker)}
}

// ParseFactsQuery reverses FactsQuery.Key.
func ParseFactsQuery(key NaturalKey) (FactsQuery, error) {
	if err := expectLen(key, 1, "facts"); err != nil {
		return FactsQuery{}, err
	}
	return FactsQuery{Ticker: key[0]}, nil
}
