package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/findata/internal/database"
	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/events"
	"github.com/aristath/findata/internal/freshness"
	"github.com/aristath/findata/internal/memcache"
)

// CacheAdmin is the L1 surface exposed over HTTP.
type CacheAdmin interface {
	Stats() memcache.Stats
	DeleteCategory(category domain.Category) int
}

// Invalidator drops a single key from the memory layer.
type Invalidator interface {
	Invalidate(category domain.Category, key domain.NaturalKey)
}

// StoreAdmin is the persistent layer surface exposed over HTTP.
type StoreAdmin interface {
	Count(ctx context.Context) (map[domain.Category]int64, error)
	Delete(ctx context.Context, category domain.Category, key domain.NaturalKey) error
}

// DatabaseInspector reports physical database statistics and health.
type DatabaseInspector interface {
	GetStats() (*database.Stats, error)
	QuickCheck(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// CacheHandlers serves cache statistics and invalidation
type CacheHandlers struct {
	cache    CacheAdmin
	resolver Invalidator
	policy   *freshness.Policy
	stats    *events.StatsRecorder
	store    StoreAdmin
	db       DatabaseInspector
	log      zerolog.Logger
}

// NewCacheHandlers creates new cache handlers. store and db may be nil.
func NewCacheHandlers(cache CacheAdmin, resolver Invalidator, policy *freshness.Policy, stats *events.StatsRecorder, store StoreAdmin, db DatabaseInspector, log zerolog.Logger) *CacheHandlers {
	return &CacheHandlers{
		cache:    cache,
		resolver: resolver,
		policy:   policy,
		stats:    stats,
		store:    store,
		db:       db,
		log:      log.With().Str("handler", "cache").Logger(),
	}
}

// RegisterRoutes registers cache routes
func (h *CacheHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.HandleGetStats)
		r.Delete("/stats", h.HandleResetStats)
		r.Delete("/{category}", h.HandleFlushCategory)
		r.Delete("/{category}/{key}", h.HandleInvalidateKey)
	})
}

// categoryReport is the per-category view of the resolution counters.
type categoryReport struct {
	events.CategoryStats
	HitRatio     float64 `json:"hit_ratio"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	StoredRows   *int64  `json:"stored_rows,omitempty"`
	L1TTL        string  `json:"l1_ttl,omitempty"`
	L2TTL        string  `json:"l2_ttl,omitempty"`
}

// formatL1TTL renders the memory TTL, "session" for no expiry.
func formatL1TTL(d time.Duration) string {
	if d == freshness.SessionLifetime {
		return "session"
	}
	return d.String()
}

// CacheStatsResponse is the body of GET /api/cache/stats.
type CacheStatsResponse struct {
	Categories map[domain.Category]categoryReport `json:"categories"`
	Memory     memcache.Stats                     `json:"memory"`
	Database   *database.Stats                    `json:"database,omitempty"`
	Warnings   []string                           `json:"warnings,omitempty"`
}

// HandleGetStats handles GET /api/cache/stats
func (h *CacheHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	response := CacheStatsResponse{
		Categories: make(map[domain.Category]categoryReport),
	}
	if h.cache != nil {
		response.Memory = h.cache.Stats()
	}

	var counts map[domain.Category]int64
	if h.store != nil {
		var err error
		if counts, err = h.store.Count(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Failed to count stored records")
			response.Warnings = append(response.Warnings, "stored row counts unavailable")
		}
	}

	var snapshot map[domain.Category]events.CategoryStats
	if h.stats != nil {
		snapshot = h.stats.Snapshot()
	}
	var ttls map[domain.Category]freshness.TTL
	if h.policy != nil {
		ttls = h.policy.Table()
	}

	for _, c := range domain.AllCategories {
		s := snapshot[c]
		report := categoryReport{
			CategoryStats: s,
			HitRatio:      s.HitRatio(),
			AvgLatencyMs:  float64(s.AvgLatency()) / float64(time.Millisecond),
		}
		if n, ok := counts[c]; ok {
			report.StoredRows = &n
		}
		if ttl, ok := ttls[c]; ok {
			report.L1TTL = formatL1TTL(ttl.L1)
			report.L2TTL = ttl.L2.String()
		}
		response.Categories[c] = report
	}

	if h.db != nil {
		stats, err := h.db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
			response.Warnings = append(response.Warnings, "database stats unavailable")
		} else {
			response.Database = stats
		}
	}

	writeJSON(h.log, w, http.StatusOK, response)
}

// HandleResetStats handles DELETE /api/cache/stats. Only the resolution
// counters are cleared.
func (h *CacheHandlers) HandleResetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats != nil {
		h.stats.Reset()
	}
	h.log.Info().Msg("Reset resolution counters")
	w.WriteHeader(http.StatusNoContent)
}

// HandleFlushCategory handles DELETE /api/cache/{category}. Only L1 is
// flushed; persisted rows stay and are re-promoted on the next lookup.
func (h *CacheHandlers) HandleFlushCategory(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	removed := h.cache.DeleteCategory(category)
	h.log.Info().
		Str("category", category.String()).
		Int("removed", removed).
		Msg("Flushed memory cache category")

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"category": category,
		"removed":  removed,
	})
}

// HandleInvalidateKey handles DELETE /api/cache/{category}/{key}. key is the
// encoded natural key ("|" between escaped parts). The L1 entry is dropped;
// with ?scope=all the persisted row is deleted too so the next lookup goes
// to the remote source.
func (h *CacheHandlers) HandleInvalidateKey(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(h.log, w, fmt.Errorf("%w: %v", domain.ErrInvalidKey, err))
		return
	}
	key, err := domain.ParseNaturalKey(raw)
	if err != nil || len(key) == 0 {
		writeError(h.log, w, fmt.Errorf("%w: malformed key %q", domain.ErrInvalidKey, raw))
		return
	}

	scope := r.URL.Query().Get("scope")
	switch scope {
	case "", "memory", "all":
	default:
		writeError(h.log, w, fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidKey, scope))
		return
	}

	h.resolver.Invalidate(category, key)

	storeDeleted := false
	if scope == "all" && h.store != nil {
		if err := h.store.Delete(r.Context(), category, key); err != nil {
			h.log.Warn().Err(err).Str("category", category.String()).Str("key", key.String()).Msg("Failed to delete stored record")
			writeError(h.log, w, err)
			return
		}
		storeDeleted = true
	}

	h.log.Info().
		Str("category", category.String()).
		Str("key", key.String()).
		Bool("store_deleted", storeDeleted).
		Msg("Invalidated cached record")

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"category":      category,
		"key":           key.String(),
		"store_deleted": storeDeleted,
	})
}
