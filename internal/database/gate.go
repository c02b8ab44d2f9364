package database

import (
	"errors"

	"golang.org/x/sync/semaphore"
)

// ErrPoolExhausted is returned when every slot of a Gate is taken.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// Gate admits at most a fixed number of concurrent users of a connection
// pool and turns callers away instead of letting them queue inside
// database/sql. Everything that talks to the pool goes through the same Gate.
type Gate struct {
	slots *semaphore.Weighted
}

// NewGate creates a gate with n slots (at least one).
func NewGate(n int) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{slots: semaphore.NewWeighted(int64(n))}
}

// TryAcquire takes a slot without waiting.
func (g *Gate) TryAcquire() bool {
	return g.slots.TryAcquire(1)
}

// Release returns a slot taken by TryAcquire.
func (g *Gate) Release() {
	g.slots.Release(1)
}
