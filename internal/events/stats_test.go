package events

import (
	"bytes"
	"testing"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRecorder_Aggregates(t *testing.T) {
	r := NewStatsRecorder()

	r.Emit(&ResolutionCompletedData{Category: domain.CategoryPrices, Layer: domain.LayerMemory, State: domain.StateFresh, Elapsed: time.Millisecond})
	r.Emit(&ResolutionCompletedData{Category: domain.CategoryPrices, Layer: domain.LayerStore, State: domain.StateFresh, Elapsed: 3 * time.Millisecond})
	r.Emit(&ResolutionCompletedData{Category: domain.CategoryPrices, Layer: domain.LayerRemote, State: domain.StateFresh, Elapsed: 100 * time.Millisecond, Shared: true})
	r.Emit(&ResolutionCompletedData{Category: domain.CategoryPrices, Layer: domain.LayerStore, State: domain.StateStale, Elapsed: 4 * time.Millisecond})
	r.Emit(&DegradedModeData{Category: domain.CategoryPrices, Layer: domain.LayerStore})
	r.Emit(&WriteBackFailedData{Category: domain.CategoryPrices, Layer: domain.LayerStore})

	snap := r.Snapshot()
	require.Contains(t, snap, domain.CategoryPrices)
	s := snap[domain.CategoryPrices]

	assert.Equal(t, int64(4), s.Requests)
	assert.Equal(t, int64(1), s.MemoryHits)
	assert.Equal(t, int64(1), s.StoreHits)
	assert.Equal(t, int64(1), s.RemoteFetches)
	assert.Equal(t, int64(1), s.Stale)
	assert.Equal(t, int64(1), s.Shared)
	assert.Equal(t, int64(1), s.Degraded)
	assert.Equal(t, int64(1), s.WriteBackFailed)
	assert.Equal(t, 100*time.Millisecond, s.MaxLatency)
	assert.InDelta(t, 0.5, s.HitRatio(), 0.0001)
	assert.Equal(t, 27*time.Millisecond, s.AvgLatency())
}

func TestStatsRecorder_EmptyRatios(t *testing.T) {
	var s CategoryStats
	assert.Zero(t, s.HitRatio())
	assert.Zero(t, s.AvgLatency())
}

func TestStatsRecorder_Reset(t *testing.T) {
	r := NewStatsRecorder()
	r.Emit(&ResolutionCompletedData{Category: domain.CategoryCompanyNews, State: domain.StateError})
	assert.Equal(t, []domain.Category{domain.CategoryCompanyNews}, r.Categories())

	r.Reset()
	assert.Empty(t, r.Snapshot())
}

func TestMulti_SkipsNilAndFansOut(t *testing.T) {
	var got []EventType
	collect := SinkFunc(func(d EventData) { got = append(got, d.EventType()) })

	sink := Multi(nil, collect, collect)
	sink.Emit(&DegradedModeData{})

	assert.Equal(t, []EventType{DegradedMode, DegradedMode}, got)
}

func TestLogSink_WritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf).Level(zerolog.DebugLevel))

	sink.Emit(&ResolutionCompletedData{ID: "abc", Category: domain.CategoryPrices, Layer: domain.LayerRemote, State: domain.StateFresh})
	sink.Emit(&WriteBackFailedData{Category: domain.CategoryPrices, Layer: domain.LayerStore, Error: "disk full"})

	out := buf.String()
	assert.Contains(t, out, `"id":"abc"`)
	assert.Contains(t, out, `"layer":"l3"`)
	assert.Contains(t, out, `"message":"Write-back failed"`)
	assert.Contains(t, out, `"error":"disk full"`)
}
