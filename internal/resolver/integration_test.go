package resolver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/findata/internal/clientdata"
	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/freshness"
	"github.com/aristath/findata/internal/memcache"
	testingpkg "github.com/aristath/findata/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Exercises the hybrid chain against the real memory cache and SQLite
// repository.
func TestHybrid_RealLayers(t *testing.T) {
	db := testingpkg.NewTestDB(t, "client_data")
	repo := clientdata.NewRepository(db.Conn(), db.Gate(), zerolog.Nop())
	policy := freshness.DefaultPolicy()
	clock := newFakeClock()

	key := domain.PriceQuery{Ticker: "AAPL", StartDate: "2024-01-01", EndDate: "2024-01-31"}.Key()
	payload, err := json.Marshal(testingpkg.NewPriceResponseFixture("AAPL"))
	require.NoError(t, err)

	remote := new(MockRemote)
	remote.On("Fetch", mock.Anything, domain.CategoryPrices, key).Return(json.RawMessage(payload), nil).Once()

	newChain := func() *Resolver {
		l1 := memcache.New(policy, memcache.Config{}, zerolog.Nop())
		return NewHybrid(l1, repo, remote, policy, Options{Now: clock.Now}, zerolog.Nop())
	}

	// Cold start: fetched remotely and written through.
	r := newChain()
	res, err := r.Resolve(t.Context(), domain.CategoryPrices, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFresh, res.State)
	assert.Equal(t, domain.LayerRemote, res.Origin)
	assert.JSONEq(t, string(payload), string(res.Record.Payload))

	stored, err := repo.Get(t.Context(), domain.CategoryPrices, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.WrittenAt.Equal(clock.Now()))

	res, err = r.Resolve(t.Context(), domain.CategoryPrices, key)
	require.NoError(t, err)
	assert.Equal(t, domain.LayerMemory, res.Origin)

	// A fresh process answers from the repository without calling out.
	r = newChain()
	clock.Advance(5 * time.Minute)
	res, err = r.Resolve(t.Context(), domain.CategoryPrices, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFresh, res.State)
	assert.Equal(t, domain.LayerStore, res.Origin)

	// Past the L2 TTL with the remote down the stored copy is served stale.
	remote.On("Fetch", mock.Anything, domain.CategoryPrices, key).
		Return(nil, &domain.RemoteError{Kind: domain.ErrNetworkFailure, Status: 502}).Once()

	r = newChain()
	clock.Advance(freshness.TTLPrices)
	res, err = r.Resolve(t.Context(), domain.CategoryPrices, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateStale, res.State)
	assert.Equal(t, domain.LayerStore, res.Origin)
	assert.True(t, res.Record.WrittenAt.Equal(stored.WrittenAt))

	remote.AssertExpectations(t)
}

func TestHybrid_RealLayers_FixtureRecordPromotion(t *testing.T) {
	db := testingpkg.NewTestDB(t, "client_data")
	repo := clientdata.NewRepository(db.Conn(), db.Gate(), zerolog.Nop())
	policy := freshness.DefaultPolicy()
	clock := newFakeClock()

	key := domain.FactsQuery{Ticker: "MSFT"}.Key()
	rec := testingpkg.NewRecordFixture(domain.CategoryCompanyFacts, key,
		testingpkg.NewCompanyFactsFixture("MSFT", "Microsoft Corporation", 3.1e12), clock.Now().Add(-time.Hour))
	require.NoError(t, repo.Upsert(t.Context(), rec))

	l1 := memcache.New(policy, memcache.Config{}, zerolog.Nop())
	remote := new(MockRemote)
	r := NewHybrid(l1, repo, remote, policy, Options{Now: clock.Now}, zerolog.Nop())

	res, err := r.Resolve(t.Context(), domain.CategoryCompanyFacts, key)
	require.NoError(t, err)
	assert.Equal(t, domain.LayerStore, res.Origin)

	assert.True(t, res.Record.WrittenAt.Equal(rec.WrittenAt))

	// The L1 copy is stamped when it was promoted.
	promoted, ok := l1.Get(domain.CategoryCompanyFacts, key)
	require.True(t, ok)
	assert.JSONEq(t, string(rec.Payload), string(promoted.Payload))
	assert.True(t, promoted.WrittenAt.After(rec.WrittenAt))

	remote.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}
