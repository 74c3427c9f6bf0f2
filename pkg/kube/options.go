package kube

import (
	"net/url"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/httpstream"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/utils/ptr"
)

// ExecutorFactory creates the executor for an exec request.
type ExecutorFactory func(config *rest.Config, url *url.URL) (remotecommand.Executor, error)

// Options contains the configuration for a control plane.
type Options struct {
	Logger            *zerolog.Logger
	RESTClient        rest.Interface
	NewExecutor       ExecutorFactory
	TerminalSizeQueue remotecommand.TerminalSizeQueue
	GracePeriod       *int64
	Labels            map[string]string
}

// Option applies a configuration option
// for the execution of an operation.
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

// GetDefaultOptions returns the default options
// for all operations of this library.
func GetDefaultOptions() *Options {
	logger := zerolog.Nop()

	return &Options{
		Logger:      &logger,
		NewExecutor: NewFallbackExecutor,
		Labels: map[string]string{
			"app.kubernetes.io/managed-by": "podsh",
		},
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithRESTClient overrides the client used to build exec requests.
func WithRESTClient(client rest.Interface) Option {
	return func(options *Options) error {
		options.RESTClient = client
		return nil
	}
}

// WithExecutorFactory overrides how exec requests are streamed.
func WithExecutorFactory(factory ExecutorFactory) Option {
	return func(options *Options) error {
		options.NewExecutor = factory
		return nil
	}
}

// WithTerminalSizeQueue forwards terminal resizes in tty sessions.
func WithTerminalSizeQueue(queue remotecommand.TerminalSizeQueue) Option {
	return func(options *Options) error {
		options.TerminalSizeQueue = queue
		return nil
	}
}

// WithGracePeriod sets the grace period for deleting workloads.
func WithGracePeriod(seconds int64) Option {
	return func(options *Options) error {
		options.GracePeriod = ptr.To(seconds)
		return nil
	}
}

// WithLabel adds a label to created workloads.
func WithLabel(key, value string) Option {
	return func(options *Options) error {
		options.Labels[key] = value
		return nil
	}
}

// NewFallbackExecutor streams via WebSockets and falls back to SPDY
// if the API server does not support the WebSocket protocol.
func NewFallbackExecutor(config *rest.Config, url *url.URL) (remotecommand.Executor, error) {
	websocket, err := remotecommand.NewWebSocketExecutor(config, "GET", url.String())
	if err != nil {
		return nil, err
	}

	spdy, err := remotecommand.NewSPDYExecutor(config, "POST", url)
	if err != nil {
		return nil, err
	}

	return remotecommand.NewFallbackExecutor(websocket, spdy, func(err error) bool {
		return httpstream.IsUpgradeFailure(err) || httpstream.IsHTTPSProxyError(err)
	})
}
