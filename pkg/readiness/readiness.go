// Package readiness decides when a workload is safe to attach to.
package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/nicklasfrahm/podsh/pkg/lifecycle"
)

// PhaseRunning is the phase of a workload that accepts attach requests.
const PhaseRunning = "Running"

// Kind is the kind of a readiness outcome.
type Kind int

const (
	// Ready means the workload reported the running phase.
	Ready Kind = iota
	// TimedOut means no terminal event arrived in time.
	TimedOut
	// Failed means the workload can never become ready.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Ready:
		return "Ready"
	case TimedOut:
		return "TimedOut"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the terminal result of waiting for a workload.
type Outcome struct {
	Kind   Kind
	Reason string
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}

// newTimer starts the readiness timer. Tests replace it to control
// when the timer fires.
var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	timer := time.NewTimer(d)
	return timer.C, timer.Stop
}

// Inspect decides readiness from a single read of a workload that
// already existed. Only a running workload is decisive. Anything else
// must be observed through a watch.
func Inspect(snapshot lifecycle.Snapshot) (Outcome, bool) {
	if snapshot.Status != nil && snapshot.Status.Phase == PhaseRunning {
		return Outcome{Kind: Ready}, true
	}
	return Outcome{}, false
}

// AwaitReady consumes the stream in delivery order until the workload
// is running, fails or the timeout elapses. A timeout of zero or less
// waits until the stream ends. The stream is stopped before returning.
//
// An event that is received in the same instant the timer fires does
// not count, as attaching to an ambiguous state is unsafe.
func AwaitReady(ctx context.Context, stream lifecycle.Stream, timeout time.Duration) Outcome {
	defer stream.Stop()

	var expired <-chan time.Time
	if timeout > 0 {
		var stop func() bool
		expired, stop = newTimer(timeout)
		defer stop()
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Outcome{Kind: TimedOut, Reason: ctx.Err().Error()}
			}
			return Outcome{Kind: Failed, Reason: ctx.Err().Error()}
		case <-expired:
			return timedOut(timeout)
		case event, ok := <-stream.Events():
			select {
			case <-expired:
				return timedOut(timeout)
			default:
			}

			if !ok {
				return Outcome{Kind: TimedOut, Reason: "watch ended before workload was running"}
			}

			if outcome, done := evaluate(event); done {
				return outcome
			}
		}
	}
}

func timedOut(timeout time.Duration) Outcome {
	return Outcome{Kind: TimedOut, Reason: fmt.Sprintf("not running after %s", timeout)}
}

// evaluate applies the running predicate to a single event and
// reports whether it is terminal.
func evaluate(event lifecycle.Event) (Outcome, bool) {
	switch event.Type {
	case lifecycle.Added:
		return Outcome{}, false
	case lifecycle.Modified:
		status := event.Snapshot.Status
		if status == nil {
			return Outcome{Kind: Failed, Reason: "missing status"}, true
		}
		if status.Phase == PhaseRunning {
			return Outcome{Kind: Ready}, true
		}
		return Outcome{}, false
	case lifecycle.Deleted:
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("workload %s was deleted", event.Snapshot.Name)}, true
	case lifecycle.Error:
		reason := "watch failed"
		if event.Err != nil {
			reason = event.Err.Error()
		}
		return Outcome{Kind: Failed, Reason: reason}, true
	}

	return Outcome{Kind: Failed, Reason: fmt.Sprintf("unexpected event %s", event.Type)}, true
}
