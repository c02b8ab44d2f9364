// Package financialdatasets provides a client for the Financial Datasets API.
// It is the authoritative remote layer: every fetch goes to the network,
// paced by a client-side rate limiter and retried on transient failures.
package financialdatasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.financialdatasets.ai"

	// DefaultRequestsPerMinute is conservative for the Credits plan.
	DefaultRequestsPerMinute = 90

	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 3 * time.Second

	maxErrorBody = 512
)

// Config holds client settings. Zero values select the defaults; a negative
// MaxRetries disables retrying.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	MaxRetries        int
	InitialBackoff    time.Duration
	HTTPTimeout       time.Duration
}

// Client is the Financial Datasets API client.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	log            zerolog.Logger
}

// NewClient creates a new Financial Datasets client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	l := log.With().Str("component", "financialdatasets").Logger()
	if cfg.APIKey == "" {
		l.Warn().Msg("FINANCIAL_DATASETS_API_KEY not set, requests are unauthenticated")
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		// Burst equals the per-minute budget so a full minute's allowance may
		// be spent at once, then refills evenly.
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute),
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		log:            l,
	}
}

// Fetch implements domain.RemoteSource. The returned payload is the
// normalized response envelope for the category.
func (c *Client) Fetch(ctx context.Context, category domain.Category, key domain.NaturalKey) (json.RawMessage, error) {
	var (
		v   any
		err error
	)

	switch category {
	case domain.CategoryPrices:
		var q domain.PriceQuery
		if q, err = domain.ParsePriceQuery(key); err == nil {
			v, err = c.getPrices(ctx, q)
		}
	case domain.CategoryFinancialMetrics:
		var q domain.MetricsQuery
		if q, err = domain.ParseMetricsQuery(key); err == nil {
			v, err = c.getFinancialMetrics(ctx, q)
		}
	case domain.CategoryCompanyNews:
		var q domain.DatedQuery
		if q, err = domain.ParseDatedQuery(key); err == nil {
			v, err = c.getCompanyNews(ctx, q)
		}
	case domain.CategoryInsiderTrades:
		var q domain.DatedQuery
		if q, err = domain.ParseDatedQuery(key); err == nil {
			v, err = c.getInsiderTrades(ctx, q)
		}
	case domain.CategoryLineItems:
		var q domain.LineItemsQuery
		if q, err = domain.ParseLineItemsQuery(key); err == nil {
			v, err = c.searchLineItems(ctx, q)
		}
	case domain.CategoryCompanyFacts:
		var q domain.FactsQuery
		if q, err = domain.ParseFactsQuery(key); err == nil {
			v, err = c.getCompanyFacts(ctx, q)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", category, err)
	}
	return payload, nil
}

func notFound(format string, args ...any) error {
	return &domain.RemoteError{Kind: domain.ErrNotFound, Status: http.StatusOK, Err: fmt.Errorf(format, args...)}
}

func (c *Client) getPrices(ctx context.Context, q domain.PriceQuery) (*domain.PriceResponse, error) {
	params := url.Values{}
	params.Set("ticker", q.Ticker)
	params.Set("interval", "day")
	params.Set("interval_multiplier", "1")
	params.Set("start_date", q.StartDate)
	params.Set("end_date", q.EndDate)

	var resp domain.PriceResponse
	if err := c.get(ctx, "/prices/", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Prices) == 0 {
		return nil, notFound("no price data for %s", q.Ticker)
	}
	resp.Ticker = q.Ticker
	return &resp, nil
}

func (c *Client) getFinancialMetrics(ctx context.Context, q domain.MetricsQuery) (*domain.FinancialMetricsResponse, error) {
	params := url.Values{}
	params.Set("ticker", q.Ticker)
	params.Set("report_period_lte", q.EndDate)
	params.Set("limit", fmt.Sprint(q.Limit))
	params.Set("period", q.Period)

	var resp domain.FinancialMetricsResponse
	if err := c.get(ctx, "/financial-metrics/", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.FinancialMetrics) == 0 {
		return nil, notFound("no financial metrics for %s", q.Ticker)
	}
	return &resp, nil
}

type lineItemsRequest struct {
	Tickers   []string `json:"tickers"`
	LineItems []string `json:"line_items"`
	EndDate   string   `json:"end_date"`
	Period    string   `json:"period"`
	Limit     int      `json:"limit"`
}

func (c *Client) searchLineItems(ctx context.Context, q domain.LineItemsQuery) (*domain.LineItemResponse, error) {
	body := lineItemsRequest{
		Tickers:   []string{q.Ticker},
		LineItems: q.LineItems,
		EndDate:   q.EndDate,
		Period:    q.Period,
		Limit:     q.Limit,
	}

	var resp domain.LineItemResponse
	if err := c.post(ctx, "/financials/search/line-items", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.SearchResults) == 0 {
		return nil, notFound("no line items for %s", q.Ticker)
	}
	if len(resp.SearchResults) > q.Limit {
		resp.SearchResults = resp.SearchResults[:q.Limit]
	}
	return &resp, nil
}

func (c *Client) getCompanyFacts(ctx context.Context, q domain.FactsQuery) (*domain.CompanyFactsResponse, error) {
	params := url.Values{}
	params.Set("ticker", q.Ticker)

	var resp domain.CompanyFactsResponse
	if err := c.get(ctx, "/company/facts/", params, &resp); err != nil {
		return nil, err
	}
	if resp.CompanyFacts.Ticker == "" && resp.CompanyFacts.Name == "" {
		return nil, notFound("no company facts for %s", q.Ticker)
	}
	return &resp, nil
}

func (c *Client) getCompanyNews(ctx context.Context, q domain.DatedQuery) (*domain.CompanyNewsResponse, error) {
	all, err := paginate(ctx, q, func(ctx context.Context, end string) ([]domain.CompanyNews, error) {
		params := url.Values{}
		params.Set("ticker", q.Ticker)
		params.Set("end_date", end)
		if q.StartDate != "" {
			params.Set("start_date", q.StartDate)
		}
		params.Set("limit", fmt.Sprint(q.Limit))

		var resp domain.CompanyNewsResponse
		if err := c.get(ctx, "/news/", params, &resp); err != nil {
			return nil, err
		}
		return resp.News, nil
	}, func(n domain.CompanyNews) string { return n.Date })
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, notFound("no company news for %s", q.Ticker)
	}
	return &domain.CompanyNewsResponse{News: all}, nil
}

func (c *Client) getInsiderTrades(ctx context.Context, q domain.DatedQuery) (*domain.InsiderTradeResponse, error) {
	all, err := paginate(ctx, q, func(ctx context.Context, end string) ([]domain.InsiderTrade, error) {
		params := url.Values{}
		params.Set("ticker", q.Ticker)
		params.Set("filing_date_lte", end)
		if q.StartDate != "" {
			params.Set("filing_date_gte", q.StartDate)
		}
		params.Set("limit", fmt.Sprint(q.Limit))

		var resp domain.InsiderTradeResponse
		if err := c.get(ctx, "/insider-trades/", params, &resp); err != nil {
			return nil, err
		}
		return resp.InsiderTrades, nil
	}, func(t domain.InsiderTrade) string { return t.FilingDate })
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, notFound("no insider trades for %s", q.Ticker)
	}
	return &domain.InsiderTradeResponse{InsiderTrades: all}, nil
}

// paginate walks the end date backwards. It only continues when a start
// date bounds the range and the previous page was full.
func paginate[T any](ctx context.Context, q domain.DatedQuery, page func(context.Context, string) ([]T, error), date func(T) string) ([]T, error) {
	var all []T
	end := q.EndDate

	for {
		items, err := page(ctx, end)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if q.StartDate == "" || len(items) < q.Limit {
			break
		}

		oldest := dateOnly(date(items[0]))
		for _, it := range items[1:] {
			if d := dateOnly(date(it)); d < oldest {
				oldest = d
			}
		}
		if oldest <= q.StartDate || oldest >= end {
			break
		}
		end = oldest
	}

	return all, nil
}

func dateOnly(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path+"?"+params.Encode(), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, data, out)
}

// do performs one logical request: rate limited, retried with exponential
// backoff on 5xx and transport errors, and decoded into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &domain.RemoteError{Kind: domain.ErrRateLimited, Err: err}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.Multiplier = 2

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return c.attempt(ctx, method, path, body)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn().
				Err(err).
				Str("path", path).
				Int("attempt", attempt).
				Int("max_retries", c.maxRetries).
				Dur("retry_in", wait).
				Msg("Financial Datasets request failed, retrying")
		}),
	)
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) {
			return remote
		}
		return classifyTransport(ctx, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.RemoteError{Kind: domain.ErrNetworkFailure, Status: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// attempt sends a single HTTP request. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("Making Financial Datasets request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(classifyTransport(ctx, err))
		}
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(&domain.RemoteError{Kind: domain.ErrNotFound, Status: resp.StatusCode})
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.Permanent(&domain.RemoteError{Kind: domain.ErrRateLimited, Status: resp.StatusCode})
	case resp.StatusCode >= 500:
		return nil, &domain.RemoteError{Kind: domain.ErrNetworkFailure, Status: resp.StatusCode, Err: errors.New(truncate(data))}
	default:
		return nil, backoff.Permanent(&domain.RemoteError{Kind: domain.ErrNetworkFailure, Status: resp.StatusCode, Err: errors.New(truncate(data))})
	}
}

func classifyTransport(ctx context.Context, err error) error {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.RemoteError{Kind: domain.ErrTimeout, Err: err}
	}
	return &domain.RemoteError{Kind: domain.ErrNetworkFailure, Err: err}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
