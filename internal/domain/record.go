package domain

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// Layer names the tier that produced a record.
type Layer string

const (
	LayerNone   Layer = ""
	LayerMemory Layer = "l1"
	LayerStore  Layer = "l2"
	LayerRemote Layer = "l3"
)

// State is the freshness outcome of a resolution.
type State string

const (
	StateFresh    State = "fresh"
	StateStale    State = "stale"
	StateNotFound State = "not_found"
	StateError    State = "error"
)

// NaturalKey is the ordered tuple identifying a record within its category.
type NaturalKey []string

// String encodes the tuple deterministically. Each element is escaped so
// that separators inside values cannot collide.
func (k NaturalKey) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = url.QueryEscape(p)
	}
	return strings.Join(parts, "|")
}

// ParseNaturalKey reverses NaturalKey.String.
func ParseNaturalKey(s string) (NaturalKey, error) {
	if s == "" {
		return NaturalKey{}, nil
	}
	raw := strings.Split(s, "|")
	key := make(NaturalKey, len(raw))
	for i, p := range raw {
		v, err := url.QueryUnescape(p)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

// CacheKey is the flat key used by the in-memory layer.
func CacheKey(category Category, key NaturalKey) string {
	return category.String() + ":" + key.String()
}

// Record is one resolved unit of data. Payload is opaque to the resolution
// engine; WrittenAt is used only for freshness.
type Record struct {
	Category  Category        `json:"category"`
	Key       NaturalKey      `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	WrittenAt time.Time       `json:"written_at"`
	Origin    Layer           `json:"origin"`
}

// Age returns how old the record is relative to now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.WrittenAt)
}

// NewerThan reports whether r was written strictly after other.
func (r *Record) NewerThan(other *Record) bool {
	if other == nil {
		return true
	}
	return r.WrittenAt.After(other.WrittenAt)
}

// WithOrigin returns a copy of r tagged with the given layer.
func (r Record) WithOrigin(l Layer) Record {
	r.Origin = l
	return r
}
