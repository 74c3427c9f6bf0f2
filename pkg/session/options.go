package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/podsh/pkg/attach"
)

// Terminal prepares the local terminal for a tty session.
type Terminal interface {
	// Setup prepares the terminal and returns a function that
	// restores its previous state.
	Setup() (func(), error)
}

// Options contains the configuration for a session.
type Options struct {
	Logger           *zerolog.Logger
	Streams          attach.Streams
	Attach           AttachOptions
	Terminal         Terminal
	ResumeToken      string
	ReadyTimeout     time.Duration
	SessionTimeout   time.Duration
	CleanupTimeout   time.Duration
	TolerateExisting bool
	OnTransition     func(from, to State)
}

// Option applies a configuration option
// for the execution of a session.
type Option func(options *Options) error

// Apply applies the option functions to the current set of options.
func (o *Options) Apply(options ...Option) (*Options, error) {
	for _, option := range options {
		if err := option(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// GetDefaultOptions returns the default options for a session.
func GetDefaultOptions() *Options {
	logger := zerolog.Nop()

	return &Options{
		Logger: &logger,
		Attach: AttachOptions{
			Command: []string{"sh"},
			Stdin:   true,
			Stdout:  true,
			TTY:     true,
		},
		ResumeToken:    "0",
		ReadyTimeout:   time.Second * 10,
		SessionTimeout: time.Minute * 15,
		CleanupTimeout: time.Second * 30,
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithStreams sets the local endpoints of the session.
func WithStreams(streams attach.Streams) Option {
	return func(options *Options) error {
		options.Streams = streams
		return nil
	}
}

// WithAttachOptions selects the command and channels of the session.
func WithAttachOptions(attachOptions AttachOptions) Option {
	return func(options *Options) error {
		options.Attach = attachOptions
		return nil
	}
}

// WithTerminal prepares the given terminal for tty sessions.
func WithTerminal(terminal Terminal) Option {
	return func(options *Options) error {
		options.Terminal = terminal
		return nil
	}
}

// WithReadyTimeout bounds the wait for the workload to run.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.ReadyTimeout = timeout
		return nil
	}
}

// WithSessionTimeout bounds the duration of the attached session.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.SessionTimeout = timeout
		return nil
	}
}

// WithCleanupTimeout bounds the deletion of the workload.
func WithCleanupTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.CleanupTimeout = timeout
		return nil
	}
}

// WithTolerateExisting continues the session if the
// workload already exists instead of failing. The
// session then owns the workload and deletes it.
func WithTolerateExisting(tolerate bool) Option {
	return func(options *Options) error {
		options.TolerateExisting = tolerate
		return nil
	}
}

// WithTransitionHook registers a function that is
// called on every state transition.
func WithTransitionHook(hook func(from, to State)) Option {
	return func(options *Options) error {
		options.OnTransition = hook
		return nil
	}
}
