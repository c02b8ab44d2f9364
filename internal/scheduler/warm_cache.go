package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/services"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Warmer is the subset of the data service the warm job drives.
type Warmer interface {
	GetPrices(ctx context.Context, q domain.PriceQuery) (services.Result[[]domain.Price], error)
	GetFinancialMetrics(ctx context.Context, q domain.MetricsQuery) (services.Result[[]domain.FinancialMetrics], error)
}

// WarmCacheJob resolves prices and metrics for a fixed ticker list so that
// interactive lookups hit L1 or L2.
type WarmCacheJob struct {
	warmer   Warmer
	tickers  []string
	lookback time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewWarmCacheJob creates a warm job covering the last 30 days of prices.
func NewWarmCacheJob(warmer Warmer, tickers []string, log zerolog.Logger) *WarmCacheJob {
	return &WarmCacheJob{
		warmer:   warmer,
		tickers:  tickers,
		lookback: 30 * 24 * time.Hour,
		timeout:  5 * time.Minute,
		now:      time.Now,
		log:      log.With().Str("job", "warm_cache").Logger(),
	}
}

// Name returns the job name
func (j *WarmCacheJob) Name() string {
	return "warm_cache"
}

// Run resolves every ticker. Stale or missing data is not an error; only
// resolutions that produced nothing at all are reported.
func (j *WarmCacheJob) Run() error {
	if len(j.tickers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	now := j.now()
	end := now.Format(time.DateOnly)
	start := now.Add(-j.lookback).Format(time.DateOnly)

	var result *multierror.Error
	warmed := 0
	for _, ticker := range j.tickers {
		prices, err := j.warmer.GetPrices(ctx, domain.PriceQuery{Ticker: ticker, StartDate: start, EndDate: end})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("prices %s: %w", ticker, err))
		} else {
			j.log.Debug().Str("ticker", ticker).Str("state", string(prices.State)).Str("origin", string(prices.Origin)).Msg("Warmed prices")
			warmed++
		}

		metrics, err := j.warmer.GetFinancialMetrics(ctx, domain.MetricsQuery{Ticker: ticker, EndDate: end})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics %s: %w", ticker, err))
		} else {
			j.log.Debug().Str("ticker", ticker).Str("state", string(metrics.State)).Str("origin", string(metrics.Origin)).Msg("Warmed metrics")
			warmed++
		}
	}

	j.log.Info().
		Int("tickers", len(j.tickers)).
		Int("warmed", warmed).
		Msg("Cache warm completed")

	return result.ErrorOrNil()
}
