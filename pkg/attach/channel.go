// Package attach relays a local terminal through the channels of an
// exec session that runs inside a remote workload.
package attach

import (
	"fmt"
	"io"
)

// Direction identifies one of the relayed channels.
type Direction int

const (
	// Stdin is the local input relayed to the remote process.
	Stdin Direction = iota
	// Stdout is the remote output relayed to the local output.
	Stdout
	// Stderr is the remote error output relayed to the local error output.
	Stderr
	// Transport is the connection that carries all channels.
	Transport
)

func (d Direction) String() string {
	switch d {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	case Transport:
		return "transport"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Conn is the single connection that multiplexes the channels of a
// ChannelSet. If the connection fails, Done must be closed and Err must
// return the cause before any channel observes the failure. Once Done
// is closed, the output channels must end after yielding what the
// remote process wrote.
type Conn interface {
	// Done is closed once the connection has ended.
	Done() <-chan struct{}
	// Err returns nil if the connection ended because the remote
	// process exited, or the cause of its failure otherwise.
	Err() error
	// Close tears the connection down. All channels are closed.
	Close() error
}

// ChannelSet bundles the channels of one exec session. Every channel
// is optional and callers branch on presence.
type ChannelSet struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
	Conn   Conn
}

// close releases every channel of the set. Errors are ignored as the
// set is unusable afterwards either way.
func (set *ChannelSet) close() {
	set.closeInput()

	for _, r := range []io.Reader{set.Stdout, set.Stderr} {
		if closer, ok := r.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}

// closeInput releases the connection and the input channel but leaves
// the output channels to end by themselves.
func (set *ChannelSet) closeInput() {
	if set.Conn != nil {
		_ = set.Conn.Close()
	}

	if set.Stdin != nil {
		_ = set.Stdin.Close()
	}
}

// done returns the channel that signals the end of the connection,
// or nil if the set has no connection.
func (set *ChannelSet) done() <-chan struct{} {
	if set.Conn == nil {
		return nil
	}
	return set.Conn.Done()
}

// failed reports whether the connection ended with an error.
func (set *ChannelSet) failed() bool {
	if set.Conn == nil {
		return false
	}

	select {
	case <-set.Conn.Done():
		return set.Conn.Err() != nil
	default:
		return false
	}
}
