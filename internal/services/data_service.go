// Package services exposes typed financial-data lookups on top of the
// resolver. It decodes payloads and keeps the freshness state alongside the
// data so callers can decide whether degraded data is good enough.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/resolver"
	"github.com/rs/zerolog"
)

// Resolver is the lookup chain the service reads through.
type Resolver interface {
	Resolve(ctx context.Context, category domain.Category, key domain.NaturalKey) (resolver.Resolution, error)
}

// Result is a typed resolution. Data is the zero value when State is
// StateNotFound.
type Result[T any] struct {
	Data      T            `json:"data"`
	State     domain.State `json:"state"`
	Origin    domain.Layer `json:"origin"`
	WrittenAt *time.Time   `json:"written_at,omitempty"`
}

// Found reports whether data was returned.
func (r Result[T]) Found() bool {
	return r.State == domain.StateFresh || r.State == domain.StateStale
}

// HybridDataService is the typed entry point for financial data.
type HybridDataService struct {
	resolver Resolver
	now      func() time.Time
	log      zerolog.Logger
}

// NewHybridDataService creates a new data service.
func NewHybridDataService(r Resolver, log zerolog.Logger) *HybridDataService {
	return &HybridDataService{
		resolver: r,
		now:      time.Now,
		log:      log.With().Str("service", "hybrid_data").Logger(),
	}
}

func resolveInto[E any, T any](ctx context.Context, s *HybridDataService, category domain.Category, key domain.NaturalKey, extract func(*E) T) (Result[T], error) {
	if len(key) == 0 || strings.TrimSpace(key[0]) == "" {
		return Result[T]{State: domain.StateError}, fmt.Errorf("%w: ticker is required", domain.ErrInvalidKey)
	}

	res, err := s.resolver.Resolve(ctx, category, key)
	out := Result[T]{State: res.State, Origin: res.Origin}
	if err != nil {
		return out, err
	}
	if res.Record == nil {
		return out, nil
	}

	var envelope E
	if err := json.Unmarshal(res.Record.Payload, &envelope); err != nil {
		s.log.Error().
			Err(err).
			Str("category", category.String()).
			Str("key", key.String()).
			Msg("Failed to decode cached payload")
		return Result[T]{State: domain.StateError}, fmt.Errorf("failed to decode %s payload: %w", category, err)
	}

	writtenAt := res.Record.WrittenAt
	out.WrittenAt = &writtenAt
	out.Data = extract(&envelope)
	return out, nil
}

// GetPrices returns daily prices for the date range.
func (s *HybridDataService) GetPrices(ctx context.Context, q domain.PriceQuery) (Result[[]domain.Price], error) {
	return resolveInto(ctx, s, domain.CategoryPrices, q.Key(), func(e *domain.PriceResponse) []domain.Price {
		return e.Prices
	})
}

// GetFinancialMetrics returns metrics reported on or before q.EndDate.
func (s *HybridDataService) GetFinancialMetrics(ctx context.Context, q domain.MetricsQuery) (Result[[]domain.FinancialMetrics], error) {
	return resolveInto(ctx, s, domain.CategoryFinancialMetrics, q.Key(), func(e *domain.FinancialMetricsResponse) []domain.FinancialMetrics {
		return e.FinancialMetrics
	})
}

// GetCompanyNews returns news between the optional start and the end date.
func (s *HybridDataService) GetCompanyNews(ctx context.Context, q domain.DatedQuery) (Result[[]domain.CompanyNews], error) {
	return resolveInto(ctx, s, domain.CategoryCompanyNews, q.Key(), func(e *domain.CompanyNewsResponse) []domain.CompanyNews {
		return e.News
	})
}

// GetInsiderTrades returns insider trades filed within the range.
func (s *HybridDataService) GetInsiderTrades(ctx context.Context, q domain.DatedQuery) (Result[[]domain.InsiderTrade], error) {
	return resolveInto(ctx, s, domain.CategoryInsiderTrades, q.Key(), func(e *domain.InsiderTradeResponse) []domain.InsiderTrade {
		return e.InsiderTrades
	})
}

// SearchLineItems returns the requested statement line items.
func (s *HybridDataService) SearchLineItems(ctx context.Context, q domain.LineItemsQuery) (Result[[]domain.LineItem], error) {
	if len(q.LineItems) == 0 {
		return Result[[]domain.LineItem]{State: domain.StateError}, fmt.Errorf("%w: at least one line item is required", domain.ErrInvalidKey)
	}
	return resolveInto(ctx, s, domain.CategoryLineItems, q.Key(), func(e *domain.LineItemResponse) []domain.LineItem {
		return e.SearchResults
	})
}

// GetCompanyFacts returns the current company profile.
func (s *HybridDataService) GetCompanyFacts(ctx context.Context, q domain.FactsQuery) (Result[*domain.CompanyFacts], error) {
	return resolveInto(ctx, s, domain.CategoryCompanyFacts, q.Key(), func(e *domain.CompanyFactsResponse) *domain.CompanyFacts {
		return &e.CompanyFacts
	})
}

// GetMarketCap returns the market capitalisation as of endDate. Today's
// value comes from company facts, historical values from the most recent
// financial metrics record.
func (s *HybridDataService) GetMarketCap(ctx context.Context, ticker, endDate string) (Result[*float64], error) {
	if endDate == "" || endDate == s.now().Format(time.DateOnly) {
		facts, err := s.GetCompanyFacts(ctx, domain.FactsQuery{Ticker: ticker})
		out := Result[*float64]{State: facts.State, Origin: facts.Origin, WrittenAt: facts.WrittenAt}
		if err != nil || facts.Data == nil {
			return out, err
		}
		out.Data = facts.Data.MarketCap
		return out, nil
	}

	metrics, err := s.GetFinancialMetrics(ctx, domain.MetricsQuery{Ticker: ticker, EndDate: endDate})
	out := Result[*float64]{State: metrics.State, Origin: metrics.Origin, WrittenAt: metrics.WrittenAt}
	if err != nil || len(metrics.Data) == 0 {
		return out, err
	}
	out.Data = metrics.Data[0].MarketCap
	return out, nil
}
