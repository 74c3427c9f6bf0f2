package lifecycle

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
)

// Stream is a lazy sequence of lifecycle events. Events are delivered
// in the order in which they were received and the channel is closed
// once the sequence ends. Consumers may stop at any point by calling
// Stop, which releases the underlying subscription.
type Stream interface {
	// Events returns the channel the events are delivered on.
	Events() <-chan Event
	// Stop cancels the subscription. It is safe to call Stop
	// multiple times.
	Stop()
}

// Converter turns a watched object into a snapshot.
type Converter func(obj runtime.Object) (Snapshot, error)

type watchStream struct {
	source  watch.Interface
	convert Converter

	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// NewWatchStream adapts a watch to a Stream. Events are only pulled
// from the watch when the consumer is ready to receive them. Bookmarks
// are skipped. A watch error or an object that cannot be converted
// yields a single Error event, after which the stream ends.
func NewWatchStream(source watch.Interface, convert Converter) Stream {
	s := &watchStream{
		source:  source,
		convert: convert,
		events:  make(chan Event),
		stop:    make(chan struct{}),
	}

	go s.run()

	return s
}

func (s *watchStream) Events() <-chan Event {
	return s.events
}

func (s *watchStream) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
}

func (s *watchStream) run() {
	defer close(s.events)
	defer s.source.Stop()

	for {
		select {
		case <-s.stop:
			return
		case raw, ok := <-s.source.ResultChan():
			if !ok {
				return
			}

			event, skip := s.translate(raw)
			if skip {
				continue
			}

			select {
			case s.events <- event:
			case <-s.stop:
				return
			}

			if event.Type == Error {
				return
			}
		}
	}
}

// translate converts a raw watch event. It reports whether the
// event carries no information for the consumer.
func (s *watchStream) translate(raw watch.Event) (Event, bool) {
	var eventType EventType
	switch raw.Type {
	case watch.Added:
		eventType = Added
	case watch.Modified:
		eventType = Modified
	case watch.Deleted:
		eventType = Deleted
	case watch.Bookmark:
		return Event{}, true
	case watch.Error:
		return Event{Type: Error, Err: errors.Wrap(apierrors.FromObject(raw.Object), "watch failed")}, false
	default:
		return Event{Type: Error, Err: fmt.Errorf("unexpected watch event type %q", raw.Type)}, false
	}

	snapshot, err := s.convert(raw.Object)
	if err != nil {
		return Event{Type: Error, Err: errors.Wrapf(err, "cannot decode %s event", eventType)}, false
	}

	return Event{Type: eventType, Snapshot: snapshot}, false
}
