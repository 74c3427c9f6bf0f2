package attach

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Kind is the kind of a session result.
type Kind int

const (
	// Completed means the session ended naturally or reached its bound.
	Completed Kind = iota
	// Interrupted means the session was cancelled by the caller.
	Interrupted
	// PipeError means relaying one of the channels failed.
	PipeError
)

func (k Kind) String() string {
	switch k {
	case Completed:
		return "Completed"
	case Interrupted:
		return "Interrupted"
	case PipeError:
		return "PipeError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result describes how a session ended. Direction and Err are only
// set if Kind is PipeError.
type Result struct {
	Kind      Kind
	Direction Direction
	Err       error
}

func (r Result) String() string {
	if r.Kind != PipeError {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s(%s: %v)", r.Kind, r.Direction, r.Err)
}

// Streams are the local endpoints of a session.
type Streams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// Run relays the local streams through the channel set until every
// direction has ended, the bound elapses or ctx is cancelled. A bound
// of zero or less does not limit the session. Run takes ownership of
// the channel set and closes it before returning.
//
// Each direction is copied by its own goroutine. The end of the local
// input closes the remote stdin but leaves the output directions
// running. A failure of the connection ends all directions at once.
// The result is only returned after every goroutine has returned.
func Run(ctx context.Context, set *ChannelSet, local Streams, bound time.Duration) Result {
	if set == nil {
		return Result{Kind: PipeError, Direction: Transport, Err: errors.New("no channels to attach to")}
	}

	sessionCtx := ctx
	if bound > 0 {
		var cancelBound context.CancelFunc
		sessionCtx, cancelBound = context.WithTimeout(ctx, bound)
		defer cancelBound()
	}
	sessionCtx, stop := context.WithCancel(sessionCtx)
	defer stop()

	r := &relay{ctx: sessionCtx, set: set}

	var wg sync.WaitGroup
	spawn := func(direction Direction, copyFn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.record(direction, copyFn())
		}()
	}

	if set.Stdin != nil && local.In != nil {
		spawn(Stdin, func() error {
			return copyInput(sessionCtx, set.Stdin, local.In)
		})
	}
	if set.Stdout != nil && local.Out != nil {
		spawn(Stdout, func() error {
			return copyOutput(local.Out, set.Stdout)
		})
	}
	if set.Stderr != nil && local.ErrOut != nil {
		spawn(Stderr, func() error {
			return copyOutput(local.ErrOut, set.Stderr)
		})
	}

	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		r.supervise(stop)
	}()

	wg.Wait()
	stop()
	<-supervised

	return r.result(ctx)
}

// relay holds the state shared by the copy goroutines of a session.
type relay struct {
	ctx context.Context
	set *ChannelSet

	// stopping is set once teardown began. Errors observed after
	// that are a consequence of the teardown.
	stopping atomic.Bool

	mu        sync.Mutex
	direction Direction
	err       error
}

// supervise waits for the session to end and tears the channel set
// down. The connection ending stops the input direction as the remote
// process cannot consume it anymore. If the remote process exited, the
// output channels stay open until they yield their end of stream.
// Otherwise they are closed along with the rest of the set.
func (r *relay) supervise(stop context.CancelFunc) {
	exited := false
	select {
	case <-r.ctx.Done():
	case <-r.set.done():
		if err := r.set.Conn.Err(); err != nil {
			r.fail(Transport, err)
		} else {
			exited = true
		}
	}

	r.stopping.Store(true)
	stop()

	if exited {
		r.set.closeInput()
		return
	}
	r.set.close()
}

// record stores the error a copy goroutine returned with.
func (r *relay) record(direction Direction, err error) {
	if err == nil || r.stopping.Load() || r.ctx.Err() != nil {
		return
	}

	// The connection failure is reported by the supervisor.
	if r.set.failed() {
		return
	}

	r.fail(direction, err)
}

// fail keeps the first failure of a session.
func (r *relay) fail(direction Direction, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err == nil {
		r.direction = direction
		r.err = err
	}
}

func (r *relay) result(parent context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return Result{Kind: PipeError, Direction: r.direction, Err: r.err}
	}

	if parent.Err() != nil {
		return Result{Kind: Interrupted}
	}

	return Result{Kind: Completed}
}

// copyInput relays the local input to the remote stdin and closes the
// remote stdin once the local input ends.
func copyInput(ctx context.Context, dst io.WriteCloser, src io.Reader) error {
	_, err := io.Copy(flushWriter{dst}, newContextReader(ctx, src))
	if err != nil {
		return err
	}

	return dst.Close()
}

// copyOutput relays a remote output channel to a local writer until
// the channel ends.
func copyOutput(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(flushWriter{dst}, src)
	return err
}
