package testing

import (
	"encoding/json"
	"time"

	"github.com/aristath/findata/internal/domain"
)

// FixtureTime is the reference "now" used by fixtures.
var FixtureTime = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

// NewPriceResponseFixture returns two January 2024 daily bars for ticker.
func NewPriceResponseFixture(ticker string) domain.PriceResponse {
	return domain.PriceResponse{
		Ticker: ticker,
		Prices: []domain.Price{
			{Open: 187.15, Close: 185.64, High: 188.44, Low: 183.89, Volume: 82488700, Time: "2024-01-02T05:00:00Z"},
			{Open: 184.22, Close: 184.25, High: 185.88, Low: 183.43, Volume: 58414500, Time: "2024-01-03T05:00:00Z"},
		},
	}
}

// NewCompanyFactsFixture returns a company profile with a market cap.
func NewCompanyFactsFixture(ticker, name string, marketCap float64) domain.CompanyFactsResponse {
	return domain.CompanyFactsResponse{
		CompanyFacts: domain.CompanyFacts{
			Ticker:    ticker,
			Name:      name,
			MarketCap: &marketCap,
		},
	}
}

// NewRecordFixture marshals payload into a record written at writtenAt.
// It panics on marshal failure, which only happens for unencodable fixtures.
func NewRecordFixture(category domain.Category, key domain.NaturalKey, payload any, writtenAt time.Time) domain.Record {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return domain.Record{
		Category:  category,
		Key:       key,
		Payload:   data,
		WrittenAt: writtenAt,
	}
}
