// Package session orchestrates the lifecycle of an interactive session
// in an ephemeral workload: create, await readiness, attach, delete.
package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/podsh/pkg/attach"
	"github.com/nicklasfrahm/podsh/pkg/lifecycle"
	"github.com/nicklasfrahm/podsh/pkg/readiness"
)

// State is the state of a session.
type State int

const (
	// Created is the initial state. The workload is being created.
	Created State = iota
	// AwaitingReady waits for the workload to run.
	AwaitingReady
	// Attaching opens the exec channels.
	Attaching
	// Attached relays the local terminal.
	Attached
	// Cleaning deletes the workload.
	Cleaning
	// Done is the terminal state.
	Done
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case AwaitingReady:
		return "AwaitingReady"
	case Attaching:
		return "Attaching"
	case Attached:
		return "Attached"
	case Cleaning:
		return "Cleaning"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Report summarizes a session. Readiness and Result are nil if the
// session never got that far.
type Report struct {
	// State is the last state before cleanup began.
	State      State
	Readiness  *readiness.Outcome
	Result     *attach.Result
	CleanupErr error
}

// Orchestrator runs sessions against a control plane.
type Orchestrator struct {
	*Options

	ControlPlane ControlPlane
}

// New creates a new Orchestrator.
func New(controlPlane ControlPlane, options ...Option) (*Orchestrator, error) {
	if controlPlane == nil {
		return nil, errors.New("no control plane specified")
	}

	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		Options:      opts,
		ControlPlane: controlPlane,
	}, nil
}

// sessionRun is the state of a single session.
type sessionRun struct {
	*Orchestrator

	logger     zerolog.Logger
	descriptor *Descriptor
	state      State
	report     *Report

	// owned is false if the workload belongs to someone else and must
	// not be deleted.
	owned bool
	// existing is set if the session reuses a workload that was there
	// before.
	existing bool
}

// Run creates the workload, waits for it to run, relays the local
// streams through an exec session and deletes the workload. Deletion
// is attempted exactly once, regardless of where the session ended,
// including a panic or a cancelled ctx. A workload that already existed
// is left untouched unless the orchestrator tolerates existing
// workloads. The returned error is a *StageError unless the descriptor
// is invalid.
func (o *Orchestrator) Run(ctx context.Context, descriptor *Descriptor) (*Report, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	run := &sessionRun{
		Orchestrator: o,
		logger: o.Logger.With().
			Str("namespace", descriptor.Namespace).
			Str("workload", descriptor.Name).
			Logger(),
		descriptor: descriptor,
		state:      Created,
		report:     &Report{State: Created},
		owned:      true,
	}

	// The workload is treated as owned from here on, even if its
	// creation fails, as the failure might be ambiguous.
	defer run.cleanup(ctx)

	return run.report, run.execute(ctx)
}

func (r *sessionRun) execute(ctx context.Context) error {
	if err := r.create(ctx); err != nil {
		return err
	}

	r.transition(AwaitingReady)
	if err := r.awaitReady(ctx); err != nil {
		return err
	}

	r.transition(Attaching)
	set, err := r.ControlPlane.Attach(ctx, r.descriptor.Name, r.attachOptions())
	if err != nil {
		return r.fail(ErrAttachFailure, err)
	}

	r.transition(Attached)
	return r.relay(ctx, set)
}

func (r *sessionRun) create(ctx context.Context) error {
	r.logger.Info().Str("image", r.descriptor.Image).Msg("Creating workload")

	err := r.ControlPlane.Create(ctx, r.descriptor)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrAlreadyExists) {
		if r.TolerateExisting {
			r.logger.Warn().Err(err).Msg("Reusing existing workload")
			r.existing = true
			return nil
		}
		r.owned = false
		return r.fail(ErrCreationConflict, err)
	}

	return r.fail(ErrCreationFailure, err)
}

func (r *sessionRun) awaitReady(ctx context.Context) error {
	resumeToken := r.ResumeToken

	// A workload that existed before may have been running for a while,
	// so its history carries no modification that proves it.
	if r.existing {
		snapshot, version, err := r.ControlPlane.Get(ctx, r.descriptor.Name)
		if err != nil {
			return r.fail(ErrReadinessFailure, err)
		}
		if outcome, ok := readiness.Inspect(snapshot); ok {
			r.report.Readiness = &outcome
			r.logger.Info().Msg("Existing workload is running")
			return nil
		}
		resumeToken = version
	}

	stream, err := r.ControlPlane.Watch(ctx, lifecycle.Filter{
		Name:        r.descriptor.Name,
		ResumeToken: resumeToken,
		Timeout:     r.ReadyTimeout,
	})
	if err != nil {
		return r.fail(ErrReadinessFailure, err)
	}

	r.logger.Info().Dur("timeout", r.ReadyTimeout).Msg("Waiting for workload to run")
	outcome := readiness.AwaitReady(ctx, stream, r.ReadyTimeout)
	r.report.Readiness = &outcome

	switch outcome.Kind {
	case readiness.Ready:
		r.logger.Info().Msg("Ready to attach")
		return nil
	case readiness.TimedOut:
		return r.fail(ErrReadinessTimeout, errors.New(outcome.Reason))
	default:
		return r.fail(ErrReadinessFailure, errors.New(outcome.Reason))
	}
}

func (r *sessionRun) relay(ctx context.Context, set *attach.ChannelSet) error {
	if r.Attach.TTY && r.Terminal != nil {
		restore, err := r.Terminal.Setup()
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to prepare terminal")
		} else {
			defer restore()
		}
	}

	r.logger.Info().Dur("timeout", r.SessionTimeout).Msg("Attached to workload")
	result := attach.Run(ctx, set, r.Streams, r.SessionTimeout)
	r.report.Result = &result

	switch result.Kind {
	case attach.Completed:
		return nil
	case attach.Interrupted:
		return r.fail(ErrInterrupted, ctx.Err())
	default:
		return r.fail(ErrPipeFailure, errors.Wrap(result.Err, result.Direction.String()))
	}
}

// cleanup deletes the workload. It uses a context that is detached from
// the cancellation of ctx, as an interrupted session must still clean up.
// Failures are only logged as there is nothing left to roll back.
func (r *sessionRun) cleanup(ctx context.Context) {
	r.report.State = r.state
	if !r.owned {
		r.logger.Info().Msg("Leaving existing workload untouched")
		r.transition(Done)
		return
	}

	r.transition(Cleaning)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.CleanupTimeout)
	defer cancel()

	r.logger.Info().Msg("Deleting workload")
	if err := r.ControlPlane.Delete(cleanupCtx, r.descriptor.Name); err != nil {
		r.report.CleanupErr = &StageError{Stage: Cleaning, Kind: ErrCleanupFailure, Err: err}
		if errors.Is(err, ErrNotFound) {
			r.logger.Info().Msg("Workload already gone")
		} else {
			r.logger.Error().Err(err).Msg("Failed to delete workload")
		}
	}

	r.transition(Done)
}

func (r *sessionRun) attachOptions() AttachOptions {
	options := r.Attach
	options.Container = r.descriptor.ContainerName()
	return options
}

func (r *sessionRun) transition(to State) {
	from := r.state
	r.state = to

	r.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("Session state changed")
	if r.OnTransition != nil {
		r.OnTransition(from, to)
	}
}

func (r *sessionRun) fail(kind, err error) error {
	r.logger.Error().Err(err).Stringer("stage", r.state).Msg(kind.Error())
	return &StageError{Stage: r.state, Kind: kind, Err: err}
}
