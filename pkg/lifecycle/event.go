// Package lifecycle exposes the lifecycle notifications of a single
// workload as a lazy, cancellable stream of typed events.
package lifecycle

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/fields"
)

// EventType is the kind of a lifecycle event.
type EventType int

const (
	// Added is emitted when the workload appears.
	Added EventType = iota
	// Modified is emitted whenever the workload changes.
	Modified
	// Deleted is emitted when the workload is removed.
	Deleted
	// Error is emitted once when the subscription fails. It is
	// always the last event of a stream.
	Error
)

func (t EventType) String() string {
	switch t {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	case Error:
		return "Error"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Status is the reported state of a workload.
type Status struct {
	Phase   string
	Reason  string
	Message string
}

// Snapshot is the state of a workload at the time of an event.
// Status is nil if the upstream object did not carry a status.
type Snapshot struct {
	Name   string
	Status *Status
}

// Event is a single lifecycle notification. Err is only set
// for events of type Error.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Err      error
}

// Filter selects the events of a single workload.
type Filter struct {
	// Name must equal the workload's `metadata.name`.
	Name string
	// ResumeToken is the resource version to start watching from.
	ResumeToken string
	// Timeout bounds the duration of the subscription. Zero
	// leaves it to the server.
	Timeout time.Duration
}

// FieldSelector returns the field selector matching the workload.
func (f Filter) FieldSelector() string {
	return fields.OneTermEqualSelector("metadata.name", f.Name).String()
}

// TimeoutSeconds returns the timeout in whole seconds, rounded up,
// or nil if no timeout is set.
func (f Filter) TimeoutSeconds() *int64 {
	if f.Timeout <= 0 {
		return nil
	}

	seconds := int64((f.Timeout + time.Second - 1) / time.Second)
	return &seconds
}
