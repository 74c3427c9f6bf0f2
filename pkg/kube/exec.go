package kube

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/nicklasfrahm/podsh/pkg/attach"
)

// execConn is the connection of an exec session. It ends when the
// executor returns.
type execConn struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	closed  bool
	closers []func(error)
	once    sync.Once
}

func (c *execConn) Done() <-chan struct{} {
	return c.done
}

func (c *execConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *execConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.closeChannels(io.ErrClosedPipe)

	return nil
}

// finish records the end of the executor. The error is stored and
// Done is closed before the channels are closed.
func (c *execConn) finish(err error) {
	c.mu.Lock()
	if !c.closed {
		c.err = err
	}
	c.mu.Unlock()

	c.once.Do(func() { close(c.done) })
	c.closeChannels(err)
}

func (c *execConn) closeChannels(err error) {
	for _, closer := range c.closers {
		closer(err)
	}
}

// openSignal reports the first read of the executor, which happens
// once the connection is upgraded and the streams are established.
type openSignal struct {
	r      io.Reader
	opened chan struct{}
	once   sync.Once
}

func (s *openSignal) Read(p []byte) (int, error) {
	s.once.Do(func() { close(s.opened) })
	return s.r.Read(p)
}

// openExec streams the executor in the background and exposes its
// channels through pipes. If stdin is requested, openExec returns once
// the executor started reading it, so that a rejected upgrade surfaces
// as an error here rather than as a failure of the session.
func openExec(
	ctx context.Context,
	executor remotecommand.Executor,
	options remotecommand.StreamOptions,
	stdin, stdout, stderr bool,
) (*attach.ChannelSet, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	conn := &execConn{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	set := &attach.ChannelSet{Conn: conn}

	var opened chan struct{}
	if stdin {
		pr, pw := io.Pipe()
		probe := &openSignal{r: pr, opened: make(chan struct{})}
		opened = probe.opened

		set.Stdin = pw
		options.Stdin = probe
		conn.closers = append(conn.closers, func(err error) { _ = pr.CloseWithError(err) })
	}

	if stdout {
		pr, pw := io.Pipe()
		set.Stdout = pr
		options.Stdout = pw
		conn.closers = append(conn.closers, func(err error) { _ = pw.CloseWithError(err) })
	}

	if stderr {
		pr, pw := io.Pipe()
		set.Stderr = pr
		options.Stderr = pw
		conn.closers = append(conn.closers, func(err error) { _ = pw.CloseWithError(err) })
	}

	go func() {
		conn.finish(executor.StreamWithContext(streamCtx, options))
	}()

	if opened == nil {
		return set, nil
	}

	select {
	case <-opened:
		return set, nil
	case <-conn.Done():
		if err := conn.Err(); err != nil {
			return nil, errors.Wrap(err, "cannot open exec session")
		}
		return set, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	}
}
