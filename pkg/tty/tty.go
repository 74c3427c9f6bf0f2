// Package tty puts the local terminal into raw mode for interactive
// sessions and reports its size changes.
package tty

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/term"
	"k8s.io/client-go/tools/remotecommand"
)

// Terminal is the local terminal of a session. It is also the size
// queue of the session, so it must be passed to the exec request
// before Setup is called.
type Terminal struct {
	in  *os.File
	out *os.File

	sizes chan remotecommand.TerminalSize
	stop  chan struct{}
	once  sync.Once

	// size reports the current size, or false if it is unknown.
	size func() (width, height uint16, ok bool)
}

// New creates a terminal reading from in and writing to out.
func New(in, out *os.File) *Terminal {
	t := &Terminal{
		in:    in,
		out:   out,
		sizes: make(chan remotecommand.TerminalSize, 1),
		stop:  make(chan struct{}),
	}
	t.size = t.outputSize

	return t
}

// IsTerminal reports whether both ends are attached to a terminal.
func (t *Terminal) IsTerminal() bool {
	return term.IsTerminal(int(t.in.Fd())) && term.IsTerminal(int(t.out.Fd()))
}

// Setup switches the input into raw mode and starts forwarding size
// changes. The returned function restores the terminal and ends the
// size queue. If the input is not a terminal, Setup does nothing.
func (t *Terminal) Setup() (func(), error) {
	if !t.IsTerminal() {
		return t.close, nil
	}

	fd := int(t.in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}

	signals := make(chan os.Signal, 4)
	notifyResize(signals)

	t.resize()
	go t.watch(signals)

	return func() {
		signal.Stop(signals)
		t.close()
		_ = term.Restore(fd, state)
	}, nil
}

// Next blocks until the size changes and returns nil once the
// terminal has been restored.
func (t *Terminal) Next() *remotecommand.TerminalSize {
	select {
	case size := <-t.sizes:
		return &size
	case <-t.stop:
		return nil
	}
}

func (t *Terminal) watch(signals <-chan os.Signal) {
	for {
		select {
		case <-signals:
			t.resize()
		case <-t.stop:
			return
		}
	}
}

// resize queues the current size. A pending size that was not picked
// up yet is replaced.
func (t *Terminal) resize() {
	width, height, ok := t.size()
	if !ok {
		return
	}

	size := remotecommand.TerminalSize{Width: width, Height: height}
	for {
		select {
		case t.sizes <- size:
			return
		case <-t.stop:
			return
		default:
		}

		select {
		case <-t.sizes:
		default:
		}
	}
}

func (t *Terminal) close() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Terminal) outputSize() (uint16, uint16, bool) {
	width, height, err := term.GetSize(int(t.out.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}

	return uint16(width), uint16(height), true
}
