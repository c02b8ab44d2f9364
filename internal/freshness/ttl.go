package freshness

import "time"

// SessionLifetime disables time-based L1 expiry: the entry stays fresh for
// the life of the process unless explicitly invalidated.
const SessionLifetime time.Duration = 0

// Default L2 TTLs per data category.
const (
	// Quarterly fundamentals (updates with filings)
	TTLFinancialMetrics = 7 * 24 * time.Hour // 7 days
	TTLLineItems        = 7 * 24 * time.Hour // 7 days

	// Daily data (time-sensitive signals)
	TTLInsiderTrades = 24 * time.Hour // 1 day
	TTLCompanyFacts  = 24 * time.Hour // 1 day - market cap moves, profile rarely does

	// Short-lived data (changes frequently)
	TTLCompanyNews = time.Hour        // 1 hour
	TTLPrices      = 15 * time.Minute // 15 minutes
)
