package resolver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/events"
	"github.com/aristath/findata/internal/freshness"
	"github.com/stretchr/testify/mock"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeMemory is an instrumented MemoryCache following the same stamping and
// monotonic write rules as the real one.
type fakeMemory struct {
	mu      sync.Mutex
	policy  *freshness.Policy
	clock   *fakeClock
	records map[string]domain.Record
	sources map[string]time.Time
	gets    int
	puts    int
}

func newFakeMemory(policy *freshness.Policy, clock *fakeClock) *fakeMemory {
	return &fakeMemory{
		policy:  policy,
		clock:   clock,
		records: make(map[string]domain.Record),
		sources: make(map[string]time.Time),
	}
}

func (m *fakeMemory) Get(c domain.Category, k domain.NaturalKey) (*domain.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	rec, ok := m.records[domain.CacheKey(c, k)]
	if !ok {
		return nil, false
	}
	return &rec, true
}

func (m *fakeMemory) Put(c domain.Category, k domain.NaturalKey, rec domain.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	now := m.clock.Now()
	source := rec.WrittenAt
	if source.IsZero() {
		source = now
	}
	ck := domain.CacheKey(c, k)
	if cur, ok := m.sources[ck]; ok && cur.After(source) {
		return false
	}
	rec.WrittenAt = now
	m.records[ck] = rec
	m.sources[ck] = source
	return true
}

func (m *fakeMemory) IsFresh(c domain.Category, k domain.NaturalKey) bool {
	m.mu.Lock()
	rec, ok := m.records[domain.CacheKey(c, k)]
	m.mu.Unlock()
	return ok && m.policy.L1Fresh(c, rec.WrittenAt, m.clock.Now())
}

func (m *fakeMemory) Delete(c domain.Category, k domain.NaturalKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, domain.CacheKey(c, k))
	delete(m.sources, domain.CacheKey(c, k))
}

// seed places rec as if it had entered L1 at rec.WrittenAt.
func (m *fakeMemory) seed(rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[domain.CacheKey(rec.Category, rec.Key)] = rec
	m.sources[domain.CacheKey(rec.Category, rec.Key)] = rec.WrittenAt
}

func (m *fakeMemory) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// MockStore is a mock PersistentRepository.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, c domain.Category, k domain.NaturalKey) (*domain.Record, error) {
	args := m.Called(ctx, c, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockStore) Upsert(ctx context.Context, rec domain.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockRemote is a mock RemoteSource.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) Fetch(ctx context.Context, c domain.Category, k domain.NaturalKey) (json.RawMessage, error) {
	args := m.Called(ctx, c, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// recordingSink keeps every emitted event.
type recordingSink struct {
	mu     sync.Mutex
	events []events.EventData
}

func (s *recordingSink) Emit(d events.EventData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, d)
}

func (s *recordingSink) resolutions() []*events.ResolutionCompletedData {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*events.ResolutionCompletedData
	for _, e := range s.events {
		if r, ok := e.(*events.ResolutionCompletedData); ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) count(t events.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}
