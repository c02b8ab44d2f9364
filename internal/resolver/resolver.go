// Package resolver implements the tiered lookup chain: memory (L1), the
// persistent repository (L2) and the remote source (L3).
//
// A resolution short-circuits on the first fresh answer, promotes hits into
// faster layers and writes remote results through to every layer below.
// Concurrent misses for the same key share one remote fetch. When the remote
// source fails the newest stale copy seen on the way down is served instead.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/events"
	"github.com/aristath/findata/internal/freshness"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultL2Timeout = 2 * time.Second
	DefaultL3Timeout = 30 * time.Second
)

// Mode names the layer set a Resolver was built with.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeDirect Mode = "direct"
)

// Options tune a Resolver. Zero values select the defaults.
type Options struct {
	L2Timeout time.Duration
	L3Timeout time.Duration
	Sink      events.Sink
	Now       func() time.Time
}

// Resolution is the outcome of a lookup. Record is nil for StateNotFound
// and StateError.
type Resolution struct {
	Record *domain.Record `json:"record,omitempty"`
	State  domain.State   `json:"state"`
	Origin domain.Layer   `json:"origin"`
}

// Resolver is the single entry point for data lookups.
type Resolver struct {
	mode      Mode
	l1        domain.MemoryCache
	l2        domain.PersistentRepository
	l3        domain.RemoteSource
	policy    *freshness.Policy
	l2Timeout time.Duration
	l3Timeout time.Duration
	sink      events.Sink
	now       func() time.Time
	flights   singleflight.Group
	log       zerolog.Logger
}

// NewHybrid builds the full L1 -> L2 -> L3 chain.
func NewHybrid(l1 domain.MemoryCache, l2 domain.PersistentRepository, l3 domain.RemoteSource, policy *freshness.Policy, opts Options, log zerolog.Logger) *Resolver {
	return newResolver(ModeHybrid, l1, l2, l3, policy, opts, log)
}

// NewDirect builds an L1 -> L3 chain with no persistent layer.
func NewDirect(l1 domain.MemoryCache, l3 domain.RemoteSource, policy *freshness.Policy, opts Options, log zerolog.Logger) *Resolver {
	return newResolver(ModeDirect, l1, nil, l3, policy, opts, log)
}

func newResolver(mode Mode, l1 domain.MemoryCache, l2 domain.PersistentRepository, l3 domain.RemoteSource, policy *freshness.Policy, opts Options, log zerolog.Logger) *Resolver {
	if policy == nil {
		policy = freshness.DefaultPolicy()
	}
	if opts.L2Timeout <= 0 {
		opts.L2Timeout = DefaultL2Timeout
	}
	if opts.L3Timeout <= 0 {
		opts.L3Timeout = DefaultL3Timeout
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Resolver{
		mode:      mode,
		l1:        l1,
		l2:        l2,
		l3:        l3,
		policy:    policy,
		l2Timeout: opts.L2Timeout,
		l3Timeout: opts.L3Timeout,
		sink:      opts.Sink,
		now:       opts.Now,
		log:       log.With().Str("component", "resolver").Str("mode", string(mode)).Logger(),
	}
}

// Mode reports which layer set is active.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Invalidate drops the L1 entry for the key. L2 is left untouched so the
// next lookup can still be answered from it.
func (r *Resolver) Invalidate(category domain.Category, key domain.NaturalKey) {
	r.l1.Delete(category, key)
	r.log.Debug().
		Str("category", category.String()).
		Str("key", key.String()).
		Msg("Invalidated memory entry")
}

// lookup carries per-call state through the chain.
type lookup struct {
	category  domain.Category
	key       domain.NaturalKey
	candidate *domain.Record // newest stale copy seen so far
	l2Down    bool
	shared    bool
}

func (l *lookup) offer(rec *domain.Record) {
	if rec != nil && rec.NewerThan(l.candidate) {
		l.candidate = rec
	}
}

// Resolve returns the freshest acceptable record for (category, key).
//
// A nil error comes with StateFresh, StateStale or StateNotFound. When no
// layer can answer and nothing stale exists the error wraps
// domain.ErrDataUnavailable and the state is StateError.
func (r *Resolver) Resolve(ctx context.Context, category domain.Category, key domain.NaturalKey) (Resolution, error) {
	start := r.now()
	l := &lookup{category: category, key: key}

	res, err := r.resolve(ctx, l)

	ev := &events.ResolutionCompletedData{
		ID:       uuid.NewString(),
		Category: category,
		Key:      key.String(),
		Layer:    res.Origin,
		State:    res.State,
		Elapsed:  r.now().Sub(start),
		Shared:   l.shared,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.sink.Emit(ev)

	return res, err
}

func (r *Resolver) resolve(ctx context.Context, l *lookup) (Resolution, error) {
	if _, _, _, err := r.policy.TTLs(l.category); err != nil {
		return Resolution{State: domain.StateError}, err
	}

	// L1
	if rec, ok := r.l1.Get(l.category, l.key); ok {
		if r.l1.IsFresh(l.category, l.key) {
			return fresh(rec, domain.LayerMemory), nil
		}
		stale := rec.WithOrigin(domain.LayerMemory)
		l.offer(&stale)
	}

	// L2
	if r.l2 != nil {
		if res, ok := r.checkStore(ctx, l); ok {
			return res, nil
		}
	}

	// L3
	rec, layer, err := r.fetch(ctx, l)
	if err == nil {
		return fresh(rec, layer), nil
	}

	if !domain.IsTransient(err) {
		r.log.Debug().
			Str("category", l.category.String()).
			Str("key", l.key.String()).
			Msg("Remote source reports no data")
		return Resolution{State: domain.StateNotFound, Origin: domain.LayerRemote}, nil
	}

	if l.candidate != nil {
		r.log.Warn().
			Err(err).
			Str("category", l.category.String()).
			Str("key", l.key.String()).
			Str("origin", string(l.candidate.Origin)).
			Time("written_at", l.candidate.WrittenAt).
			Dur("age", l.candidate.Age(r.now())).
			Msg("Remote fetch failed, serving stale data")
		rec := *l.candidate
		return Resolution{Record: &rec, State: domain.StateStale, Origin: rec.Origin}, nil
	}

	r.log.Error().
		Err(err).
		Str("category", l.category.String()).
		Str("key", l.key.String()).
		Msg("No layer could answer")
	return Resolution{State: domain.StateError}, fmt.Errorf("%w: %s %s: %w", domain.ErrDataUnavailable, l.category, l.key, err)
}

// checkStore consults L2. It reports true when the lookup is settled.
func (r *Resolver) checkStore(ctx context.Context, l *lookup) (Resolution, bool) {
	storeCtx, cancel := context.WithTimeout(ctx, r.l2Timeout)
	defer cancel()

	rec, err := r.l2.Get(storeCtx, l.category, l.key)
	if err != nil {
		l.l2Down = true
		r.log.Warn().
			Err(err).
			Str("category", l.category.String()).
			Str("key", l.key.String()).
			Msg("Repository unavailable, skipping to remote source")
		r.sink.Emit(&events.DegradedModeData{
			Category: l.category,
			Key:      l.key.String(),
			Layer:    domain.LayerStore,
			Error:    err.Error(),
		})
		return Resolution{}, false
	}
	if rec == nil {
		return Resolution{}, false
	}

	stored := rec.WithOrigin(domain.LayerStore)
	if !r.policy.L2Fresh(l.category, stored.WrittenAt, r.now()) {
		l.offer(&stored)
		return Resolution{}, false
	}

	// L1 stamps the promoted copy on insertion; the L2 timestamp only orders it.
	r.l1.Put(l.category, l.key, stored)
	return fresh(&stored, domain.LayerStore), true
}

// fetch joins or starts the shared remote fetch for the key. The fetch runs
// detached from any single caller so one caller giving up does not fail the
// others; each caller still stops waiting when its own context ends.
func (r *Resolver) fetch(ctx context.Context, l *lookup) (*domain.Record, domain.Layer, error) {
	flightKey := domain.CacheKey(l.category, l.key)
	writeStore := r.l2 != nil && !l.l2Down

	ch := r.flights.DoChan(flightKey, func() (any, error) {
		return r.fetchAndPopulate(context.WithoutCancel(ctx), l.category, l.key, writeStore)
	})

	select {
	case res := <-ch:
		l.shared = res.Shared
		if res.Err != nil {
			return nil, domain.LayerNone, res.Err
		}
		out := res.Val.(flightResult)
		rec := *out.rec
		return &rec, out.layer, nil
	case <-ctx.Done():
		return nil, domain.LayerNone, &domain.RemoteError{Kind: domain.ErrTimeout, Err: ctx.Err()}
	}
}

type flightResult struct {
	rec   *domain.Record
	layer domain.Layer
}

func (r *Resolver) fetchAndPopulate(ctx context.Context, category domain.Category, key domain.NaturalKey, writeStore bool) (flightResult, error) {
	// A flight that finished between this caller's L1 miss and joining has
	// already populated L1.
	if rec, ok := r.l1.Get(category, key); ok && r.l1.IsFresh(category, key) {
		return flightResult{rec: rec, layer: domain.LayerMemory}, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.l3Timeout)
	defer cancel()

	payload, err := r.l3.Fetch(fetchCtx, category, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = &domain.RemoteError{Kind: domain.ErrTimeout, Err: err}
		}
		return flightResult{}, err
	}

	rec := &domain.Record{
		Category:  category,
		Key:       append(domain.NaturalKey(nil), key...),
		Payload:   payload,
		WrittenAt: r.now(),
		Origin:    domain.LayerRemote,
	}

	if writeStore {
		storeCtx, cancelStore := context.WithTimeout(ctx, r.l2Timeout)
		err := r.l2.Upsert(storeCtx, *rec)
		cancelStore()
		if err != nil {
			r.writeBackFailed(category, key, domain.LayerStore, err)
		}
	}

	if !r.l1.Put(category, key, *rec) {
		// A newer copy already landed in L1. The fetched record is still what
		// this resolution returns.
		r.log.Debug().
			Str("category", category.String()).
			Str("key", key.String()).
			Msg("Memory layer kept a newer record")
	}

	return flightResult{rec: rec, layer: domain.LayerRemote}, nil
}

func (r *Resolver) writeBackFailed(category domain.Category, key domain.NaturalKey, layer domain.Layer, err error) {
	r.log.Warn().
		Err(err).
		Str("category", category.String()).
		Str("key", key.String()).
		Str("layer", string(layer)).
		Msg("Write-back failed after remote fetch")
	r.sink.Emit(&events.WriteBackFailedData{
		Category: category,
		Key:      key.String(),
		Layer:    layer,
		Error:    err.Error(),
	})
}

func fresh(rec *domain.Record, layer domain.Layer) Resolution {
	out := rec.WithOrigin(layer)
	return Resolution{Record: &out, State: domain.StateFresh, Origin: layer}
}
