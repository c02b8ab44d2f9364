// Package di provides dependency injection for the resolution chain.
package di

import (
	"fmt"

	"github.com/aristath/findata/internal/clients/financialdatasets"
	"github.com/aristath/findata/internal/config"
	"github.com/aristath/findata/internal/events"
	"github.com/aristath/findata/internal/freshness"
	"github.com/aristath/findata/internal/memcache"
	"github.com/aristath/findata/internal/resolver"
	"github.com/aristath/findata/internal/services"
	"github.com/rs/zerolog"
)

// InitializeServices builds the memory layer, the remote client and the
// resolver on top of whatever InitializeDatabases produced.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	policy, err := freshness.NewPolicy(cfg.Cache.TTLOverrides)
	if err != nil {
		return fmt.Errorf("failed to build freshness policy: %w", err)
	}
	container.Policy = policy

	container.MemoryCache = memcache.New(policy, memcache.Config{Capacity: cfg.Cache.L1Capacity}, log)

	if cfg.Remote.APIKey == "" {
		log.Warn().Msg("FINANCIAL_DATASETS_API_KEY not set, remote requests may be rejected")
	}
	container.RemoteClient = financialdatasets.NewClient(financialdatasets.Config{
		BaseURL:           cfg.Remote.BaseURL,
		APIKey:            cfg.Remote.APIKey,
		RequestsPerMinute: cfg.Remote.RequestsPerMinute,
		MaxRetries:        cfg.Remote.MaxRetries,
	}, log)

	container.Stats = events.NewStatsRecorder()
	opts := resolver.Options{
		L2Timeout: cfg.Cache.L2Timeout,
		L3Timeout: cfg.Cache.L3Timeout,
		Sink:      events.Multi(container.Stats, events.NewLogSink(log)),
	}

	if container.ClientDataRepo != nil {
		container.Resolver = resolver.NewHybrid(container.MemoryCache, container.ClientDataRepo, container.RemoteClient, policy, opts, log)
	} else {
		container.Resolver = resolver.NewDirect(container.MemoryCache, container.RemoteClient, policy, opts, log)
	}

	container.DataService = services.NewHybridDataService(container.Resolver, log)

	log.Info().
		Str("mode", string(container.Resolver.Mode())).
		Uint64("l1_capacity", cfg.Cache.L1Capacity).
		Int("rate_limit_per_minute", cfg.Remote.RequestsPerMinute).
		Msg("Resolution chain ready")

	return nil
}
