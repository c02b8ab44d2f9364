// Package freshness maps data categories to the time-to-live of each cache
// layer. A policy is fixed at construction and never mutated afterwards.
package freshness

import (
	"fmt"
	"time"

	"github.com/aristath/findata/internal/domain"
)

// TTL is the pair of layer lifetimes for one category.
type TTL struct {
	L1 time.Duration // SessionLifetime (0) means no expiry
	L2 time.Duration
}

// Override replaces individual TTLs of the default table. Nil fields keep
// the default.
type Override struct {
	L1 *time.Duration
	L2 *time.Duration
}

// Policy answers freshness questions per category.
type Policy struct {
	ttls map[domain.Category]TTL
}

// Defaults returns the built-in TTL table.
func Defaults() map[domain.Category]TTL {
	return map[domain.Category]TTL{
		domain.CategoryFinancialMetrics: {L1: SessionLifetime, L2: TTLFinancialMetrics},
		domain.CategoryPrices:           {L1: SessionLifetime, L2: TTLPrices},
		domain.CategoryCompanyNews:      {L1: SessionLifetime, L2: TTLCompanyNews},
		domain.CategoryInsiderTrades:    {L1: SessionLifetime, L2: TTLInsiderTrades},
		domain.CategoryLineItems:        {L1: SessionLifetime, L2: TTLLineItems},
		domain.CategoryCompanyFacts:     {L1: SessionLifetime, L2: TTLCompanyFacts},
	}
}

// DefaultPolicy returns a policy using the built-in table.
func DefaultPolicy() *Policy {
	return &Policy{ttls: Defaults()}
}

// NewPolicy applies overrides on top of the defaults.
func NewPolicy(overrides map[domain.Category]Override) (*Policy, error) {
	ttls := Defaults()
	for c, o := range overrides {
		t, ok := ttls[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, c)
		}
		if o.L1 != nil {
			if *o.L1 < 0 {
				return nil, fmt.Errorf("negative L1 TTL for %s: %s", c, *o.L1)
			}
			t.L1 = *o.L1
		}
		if o.L2 != nil {
			if *o.L2 <= 0 {
				return nil, fmt.Errorf("L2 TTL for %s must be positive, got %s", c, *o.L2)
			}
			t.L2 = *o.L2
		}
		ttls[c] = t
	}
	return &Policy{ttls: ttls}, nil
}

// TTLs returns the layer lifetimes for a category. The remote source is
// authoritative, so l3AlwaysFresh is true for every known category.
func (p *Policy) TTLs(c domain.Category) (l1, l2 time.Duration, l3AlwaysFresh bool, err error) {
	t, ok := p.ttls[c]
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, c)
	}
	return t.L1, t.L2, true, nil
}

// L1Fresh reports whether a record written at writtenAt is still fresh in
// memory. Session-lifetime categories are always fresh.
func (p *Policy) L1Fresh(c domain.Category, writtenAt, now time.Time) bool {
	t, ok := p.ttls[c]
	if !ok {
		return false
	}
	if t.L1 == SessionLifetime {
		return true
	}
	return now.Sub(writtenAt) < t.L1
}

// L2Fresh reports whether a persisted record is still fresh for serving.
// Expired rows stay in storage as stale-fallback candidates.
func (p *Policy) L2Fresh(c domain.Category, writtenAt, now time.Time) bool {
	t, ok := p.ttls[c]
	if !ok {
		return false
	}
	return now.Sub(writtenAt) < t.L2
}

// Table returns a copy of the effective TTL table.
func (p *Policy) Table() map[domain.Category]TTL {
	out := make(map[domain.Category]TTL, len(p.ttls))
	for c, t := range p.ttls {
		out[c] = t
	}
	return out
}
