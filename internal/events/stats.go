package events

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/findata/internal/domain"
)

// CategoryStats aggregates resolutions for one category.
type CategoryStats struct {
	Requests        int64         `json:"requests"`
	MemoryHits      int64         `json:"l1_hits"`
	StoreHits       int64         `json:"l2_hits"`
	RemoteFetches   int64         `json:"l3_fetches"`
	Stale           int64         `json:"stale"`
	NotFound        int64         `json:"not_found"`
	Errors          int64         `json:"errors"`
	Shared          int64         `json:"shared"`
	Degraded        int64         `json:"degraded"`
	WriteBackFailed int64         `json:"write_back_failed"`
	TotalLatency    time.Duration `json:"total_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
}

// HitRatio is the share of requests answered from L1 or L2.
func (s CategoryStats) HitRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.MemoryHits+s.StoreHits) / float64(s.Requests)
}

// AvgLatency is the mean resolution time.
func (s CategoryStats) AvgLatency() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Requests)
}

// StatsRecorder is a Sink aggregating counters per category.
type StatsRecorder struct {
	mu    sync.Mutex
	stats map[domain.Category]*CategoryStats
}

// NewStatsRecorder creates an empty recorder.
func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{stats: make(map[domain.Category]*CategoryStats)}
}

func (r *StatsRecorder) entry(c domain.Category) *CategoryStats {
	s, ok := r.stats[c]
	if !ok {
		s = &CategoryStats{}
		r.stats[c] = s
	}
	return s
}

// Emit records the event.
func (r *StatsRecorder) Emit(data EventData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch d := data.(type) {
	case *ResolutionCompletedData:
		s := r.entry(d.Category)
		s.Requests++
		s.TotalLatency += d.Elapsed
		if d.Elapsed > s.MaxLatency {
			s.MaxLatency = d.Elapsed
		}
		if d.Shared {
			s.Shared++
		}
		switch d.State {
		case domain.StateStale:
			s.Stale++
		case domain.StateNotFound:
			s.NotFound++
		case domain.StateError:
			s.Errors++
		}
		if d.State == domain.StateFresh {
			switch d.Layer {
			case domain.LayerMemory:
				s.MemoryHits++
			case domain.LayerStore:
				s.StoreHits++
			case domain.LayerRemote:
				s.RemoteFetches++
			}
		}
	case *DegradedModeData:
		r.entry(d.Category).Degraded++
	case *WriteBackFailedData:
		r.entry(d.Category).WriteBackFailed++
	}
}

// Snapshot returns a copy of the counters.
func (r *StatsRecorder) Snapshot() map[domain.Category]CategoryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[domain.Category]CategoryStats, len(r.stats))
	for c, s := range r.stats {
		out[c] = *s
	}
	return out
}

// Categories returns the categories seen so far, sorted.
func (r *StatsRecorder) Categories() []domain.Category {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Category, 0, len(r.stats))
	for c := range r.stats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset clears all counters.
func (r *StatsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = make(map[domain.Category]*CategoryStats)
}
