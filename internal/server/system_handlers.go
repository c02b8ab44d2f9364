package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/findata/internal/scheduler"
)

// JobLister reports registered background jobs.
type JobLister interface {
	Jobs() []scheduler.JobStatus
}

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	mode        string
	version     string
	cache       CacheAdmin
	db          DatabaseInspector
	jobs        JobLister
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(mode, version string, cache CacheAdmin, db DatabaseInspector, jobs JobLister, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		mode:        mode,
		version:     version,
		cache:       cache,
		db:          db,
		jobs:        jobs,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/system/status", h.HandleSystemStatus)
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string                `json:"status"`
	Version       string                `json:"version"`
	Mode          string                `json:"mode"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	CPUPercent    float64               `json:"cpu_percent"`
	RAMPercent    float64               `json:"ram_percent"`
	Goroutines    int                   `json:"goroutines"`
	MemoryEntries int                   `json:"memory_entries"`
	DatabaseBytes int64                 `json:"database_bytes,omitempty"`
	DatabaseError string                `json:"database_error,omitempty"`
	Jobs          []scheduler.JobStatus `json:"jobs,omitempty"`
	LastCheck     string                `json:"last_check"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "ok",
		Version:       h.version,
		Mode:          h.mode,
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		LastCheck:     time.Now().Format(time.RFC3339),
	}

	if h.cache != nil {
		response.MemoryEntries = h.cache.Stats().Entries
	}
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Database integrity check failed")
			response.Status = "degraded"
			response.DatabaseError = err.Error()
		}
		if stats, err := h.db.GetStats(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
			response.Status = "degraded"
		} else {
			response.DatabaseBytes = stats.SizeBytes + stats.WALSizeBytes
		}
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}

	writeJSON(h.log, w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms so the call stays fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
