package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/findata/internal/database"
	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/services"
	testingpkg "github.com/aristath/findata/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_AddJobAndList(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.AddJob("@every 1h", job))
	assert.Error(t, s.AddJob("not a schedule", job))

	s.Start()
	defer s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "counting", jobs[0].Name)
	assert.Equal(t, "@every 1h", jobs[0].Schedule)
	assert.NotEmpty(t, jobs[0].NextRun)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

type fakeCheckpointer struct {
	name  string
	res   database.CheckpointResult
	err   error
	calls int
	mode  string
}

func (f *fakeCheckpointer) Name() string { return f.name }

func (f *fakeCheckpointer) WALCheckpoint(mode string) (database.CheckpointResult, error) {
	f.calls++
	f.mode = mode
	return f.res, f.err
}

func TestWALCheckpointJob_Run(t *testing.T) {
	ok := &fakeCheckpointer{name: "client_data", res: database.CheckpointResult{LogFrames: 2000, Checkpointed: 2000}}
	failing := &fakeCheckpointer{name: "broken", err: errors.New("disk I/O error")}

	job := NewWALCheckpointJob(zerolog.Nop(), ok, failing)
	assert.Equal(t, "wal_checkpoint", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, "PASSIVE", ok.mode)
	assert.Equal(t, 1, failing.calls)
}

func TestWALCheckpointJob_RealDatabase(t *testing.T) {
	db := testingpkg.NewTestDB(t, "client_data")

	require.NoError(t, NewWALCheckpointJob(zerolog.Nop(), db).Run())
}

type fakeWarmer struct {
	prices  []domain.PriceQuery
	metrics []domain.MetricsQuery
	failFor string
}

func (f *fakeWarmer) GetPrices(ctx context.Context, q domain.PriceQuery) (services.Result[[]domain.Price], error) {
	f.prices = append(f.prices, q)
	if q.Ticker == f.failFor {
		return services.Result[[]domain.Price]{State: domain.StateError}, domain.ErrDataUnavailable
	}
	return services.Result[[]domain.Price]{State: domain.StateFresh, Origin: domain.LayerRemote}, nil
}

func (f *fakeWarmer) GetFinancialMetrics(ctx context.Context, q domain.MetricsQuery) (services.Result[[]domain.FinancialMetrics], error) {
	f.metrics = append(f.metrics, q)
	return services.Result[[]domain.FinancialMetrics]{State: domain.StateStale, Origin: domain.LayerStore}, nil
}

func TestWarmCacheJob_Run(t *testing.T) {
	warmer := &fakeWarmer{failFor: "MSFT"}
	job := NewWarmCacheJob(warmer, []string{"AAPL", "MSFT"}, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }

	err := job.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	require.Len(t, warmer.prices, 2)
	assert.Equal(t, "2024-01-02", warmer.prices[0].StartDate)
	assert.Equal(t, "2024-02-01", warmer.prices[0].EndDate)
	require.Len(t, warmer.metrics, 2)
	assert.Equal(t, "2024-02-01", warmer.metrics[1].EndDate)
}

func TestWarmCacheJob_NoTickers(t *testing.T) {
	warmer := &fakeWarmer{}
	require.NoError(t, NewWarmCacheJob(warmer, nil, zerolog.Nop()).Run())
	assert.Empty(t, warmer.prices)
}
