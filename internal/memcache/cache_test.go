package memcache

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/freshness"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aaplJan = domain.PriceQuery{Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "2024-01-31"}.Key()

func newTestCache(t *testing.T, policy *freshness.Policy) *Cache {
	t.Helper()
	if policy == nil {
		policy = freshness.DefaultPolicy()
	}
	return New(policy, Config{}, zerolog.Nop())
}

func TestGet_Miss(t *testing.T) {
	c := newTestCache(t, nil)

	rec, ok := c.Get(domain.CategoryPrices, aaplJan)
	assert.False(t, ok)
	assert.Nil(t, rec)
	assert.False(t, c.IsFresh(domain.CategoryPrices, aaplJan))
}

func TestPut_StampsWrittenAt(t *testing.T) {
	c := newTestCache(t, nil)
	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	applied := c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`[1]`)})
	require.True(t, applied)

	rec, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	assert.Equal(t, fixed, rec.WrittenAt)
	assert.Equal(t, domain.CategoryPrices, rec.Category)
	assert.Equal(t, aaplJan, rec.Key)
	assert.JSONEq(t, `[1]`, string(rec.Payload))
}

func TestPut_StampsInsertionTimeOverRecordTimestamp(t *testing.T) {
	c := newTestCache(t, nil)
	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`[]`), WrittenAt: fixed.Add(-3 * time.Hour)})

	rec, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	assert.Equal(t, fixed, rec.WrittenAt)
}

func TestPut_RejectsOlderRecord(t *testing.T) {
	c := newTestCache(t, nil)
	newer := time.Now()
	older := newer.Add(-time.Minute)

	require.True(t, c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`"new"`), WrittenAt: newer}))
	assert.False(t, c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`"old"`), WrittenAt: older}))

	rec, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	assert.JSONEq(t, `"new"`, string(rec.Payload))
	assert.Equal(t, uint64(1), c.Stats().Rejected)
}

func TestPut_ConcurrentWritesKeepNewest(t *testing.T) {
	c := newTestCache(t, nil)
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put(domain.CategoryPrices, aaplJan, domain.Record{
				Payload:   json.RawMessage(strconv.Itoa(i)),
				WrittenAt: base.Add(time.Duration(i) * time.Second),
			})
		}(i)
	}
	wg.Wait()

	rec, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	assert.Equal(t, "49", string(rec.Payload))
}

func TestPut_CopiesPayload(t *testing.T) {
	c := newTestCache(t, nil)
	payload := json.RawMessage(`"abc"`)

	c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: payload})
	payload[1] = 'z'

	rec, _ := c.Get(domain.CategoryPrices, aaplJan)
	assert.JSONEq(t, `"abc"`, string(rec.Payload))
}

func TestGet_ReturnsIndependentCopy(t *testing.T) {
	c := newTestCache(t, nil)
	c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`"abc"`)})

	first, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	first.Payload[1] = 'z'
	first.Key[0] = "MSFT"

	second, ok := c.Get(domain.CategoryPrices, aaplJan)
	require.True(t, ok)
	assert.JSONEq(t, `"abc"`, string(second.Payload))
	assert.Equal(t, aaplJan, second.Key)
}

func TestIsFresh_SessionLifetime(t *testing.T) {
	c := newTestCache(t, nil)
	c.Put(domain.CategoryPrices, aaplJan, domain.Record{
		Payload:   json.RawMessage(`[]`),
		WrittenAt: time.Now().Add(-30 * 24 * time.Hour),
	})

	assert.True(t, c.IsFresh(domain.CategoryPrices, aaplJan))
}

func TestIsFresh_ConfiguredTTL(t *testing.T) {
	ttl := time.Minute
	policy, err := freshness.NewPolicy(map[domain.Category]freshness.Override{
		domain.CategoryPrices: {L1: &ttl},
	})
	require.NoError(t, err)
	c := newTestCache(t, policy)
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	// An old source timestamp does not age the entry: it is fresh on arrival.
	c.Put(domain.CategoryPrices, aaplJan, domain.Record{
		Payload:   json.RawMessage(`[]`),
		WrittenAt: now.Add(-2 * time.Minute),
	})
	assert.True(t, c.IsFresh(domain.CategoryPrices, aaplJan))

	now = now.Add(2 * time.Minute)

	// Present but stale: Get still returns it so it can serve as fallback.
	_, ok := c.Get(domain.CategoryPrices, aaplJan)
	assert.True(t, ok)
	assert.False(t, c.IsFresh(domain.CategoryPrices, aaplJan))
}

func TestDeleteCategory(t *testing.T) {
	c := newTestCache(t, nil)
	msft := domain.PriceQuery{Ticker: "MSFT", StartDate: "2024-01-01", EndDate: "2024-01-31"}.Key()
	news := domain.DatedQuery{Ticker: "AAPL", EndDate: "2024-01-31"}.Key()

	c.Put(domain.CategoryPrices, aaplJan, domain.Record{Payload: json.RawMessage(`[]`)})
	c.Put(domain.CategoryPrices, msft, domain.Record{Payload: json.RawMessage(`[]`)})
	c.Put(domain.CategoryCompanyNews, news, domain.Record{Payload: json.RawMessage(`[]`)})

	removed := c.DeleteCategory(domain.CategoryPrices)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(domain.CategoryCompanyNews, news)
	assert.True(t, ok)
}

func TestCapacityEviction(t *testing.T) {
	c := New(freshness.DefaultPolicy(), Config{Capacity: 2}, zerolog.Nop())

	for _, ticker := range []string{"AAPL", "MSFT", "NVDA"} {
		key := domain.PriceQuery{Ticker: ticker, StartDate: "2024-01-01", EndDate: "2024-01-31"}.Key()
		c.Put(domain.CategoryPrices, key, domain.Record{Payload: json.RawMessage(`[]`)})
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}
