// Package events carries what the resolver reports about each resolution:
// which layer answered, the freshness state and how long it took.
package events

import (
	"time"

	"github.com/aristath/findata/internal/domain"
)

// EventType names an event kind.
type EventType string

const (
	ResolutionCompleted EventType = "RESOLUTION_COMPLETED"
	DegradedMode        EventType = "DEGRADED_MODE"
	WriteBackFailed     EventType = "WRITE_BACK_FAILED"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ResolutionCompletedData is emitted once per resolution.
type ResolutionCompletedData struct {
	ID       string          `json:"id"`
	Category domain.Category `json:"category"`
	Key      string          `json:"key"`
	Layer    domain.Layer    `json:"layer"`
	State    domain.State    `json:"state"`
	Elapsed  time.Duration   `json:"elapsed"`
	Shared   bool            `json:"shared"` // result came from another caller's in-flight fetch
	Error    string          `json:"error,omitempty"`
}

// EventType returns the event type for ResolutionCompletedData
func (d *ResolutionCompletedData) EventType() EventType {
	return ResolutionCompleted
}

// DegradedModeData is emitted when a layer is skipped because it failed.
type DegradedModeData struct {
	Category domain.Category `json:"category"`
	Key      string          `json:"key"`
	Layer    domain.Layer    `json:"layer"`
	Error    string          `json:"error"`
}

// EventType returns the event type for DegradedModeData
func (d *DegradedModeData) EventType() EventType {
	return DegradedMode
}

// WriteBackFailedData is emitted when populating a faster layer fails after
// a successful fetch.
type WriteBackFailedData struct {
	Category domain.Category `json:"category"`
	Key      string          `json:"key"`
	Layer    domain.Layer    `json:"layer"`
	Error    string          `json:"error"`
}

// EventType returns the event type for WriteBackFailedData
func (d *WriteBackFailedData) EventType() EventType {
	return WriteBackFailed
}
