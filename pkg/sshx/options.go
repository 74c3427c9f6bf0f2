package sshx

import (
	"time"

	"github.com/rs/zerolog"
)

// Options contains the configuration for an SSH client.
type Options struct {
	Logger  *zerolog.Logger
	Proxy   *Client
	Timeout time.Duration
}

// Option applies a configuration option to an SSH client.
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

// GetDefaultOptions returns the default options for SSH clients.
func GetDefaultOptions() *Options {
	logger := zerolog.Nop()

	return &Options{
		Logger:  &logger,
		Timeout: time.Second * 10,
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		options.Logger = logger
		return nil
	}
}

// WithProxy tunnels the connection through an existing
// client, often also referred to as bastion host.
func WithProxy(proxy *Client) Option {
	return func(options *Options) error {
		options.Proxy = proxy
		return nil
	}
}

// WithTimeout sets the timeout for establishing the connection.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}
