package domain

import (
	"fmt"
	"strings"
)

// Category identifies a kind of financial data. It selects the freshness
// policy and the remote fetch function used to resolve a record.
type Category string

const (
	CategoryFinancialMetrics Category = "financial-metrics"
	CategoryPrices           Category = "price-data"
	CategoryCompanyNews      Category = "company-news"
	CategoryInsiderTrades    Category = "insider-trades"
	CategoryLineItems        Category = "line-items"
	CategoryCompanyFacts     Category = "company-facts"
)

// AllCategories lists every recognized category in a stable order.
var AllCategories = []Category{
	CategoryFinancialMetrics,
	CategoryPrices,
	CategoryCompanyNews,
	CategoryInsiderTrades,
	CategoryLineItems,
	CategoryCompanyFacts,
}

// String returns the wire name of the category.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// EnvName returns the category in environment variable form,
// e.g. "price-data" becomes "PRICE_DATA".
func (c Category) EnvName() string {
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

// ParseCategory converts a wire name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}
