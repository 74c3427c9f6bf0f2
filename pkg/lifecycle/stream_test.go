package lifecycle

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
)

func testPod(phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "example"},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

func testConverter(obj runtime.Object) (Snapshot, error) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return Snapshot{}, errors.Errorf("unexpected object %T", obj)
	}
	return Snapshot{Name: pod.Name, Status: &Status{Phase: string(pod.Status.Phase)}}, nil
}

// collect drains the stream and fails the test if it does not end.
func collect(t *testing.T, s Stream) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	return types
}

func TestWatchStreamDeliversInOrder(t *testing.T) {
	fw := watch.NewFakeWithChanSize(10, false)
	fw.Add(testPod(corev1.PodPending))
	fw.Action(watch.Bookmark, testPod(""))
	fw.Modify(testPod(corev1.PodRunning))
	fw.Delete(testPod(corev1.PodRunning))
	fw.Stop()

	events := collect(t, NewWatchStream(fw, testConverter))

	want := []EventType{Added, Modified, Deleted}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Errorf("NewWatchStream(...): -want types, +got types:\n%s", diff)
	}
	if got := events[1].Snapshot.Status.Phase; got != string(corev1.PodRunning) {
		t.Errorf("Modified phase: want %q, got %q", corev1.PodRunning, got)
	}
}

func TestWatchStreamEndsAfterError(t *testing.T) {
	fw := watch.NewFakeWithChanSize(10, false)
	fw.Add(testPod(corev1.PodPending))
	fw.Error(&metav1.Status{
		Status:  metav1.StatusFailure,
		Reason:  metav1.StatusReasonExpired,
		Message: "resource version too old",
		Code:    410,
	})
	fw.Modify(testPod(corev1.PodRunning))

	events := collect(t, NewWatchStream(fw, testConverter))

	want := []EventType{Added, Error}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Fatalf("NewWatchStream(...): -want types, +got types:\n%s", diff)
	}
	if events[1].Err == nil {
		t.Error("Error event without error")
	}
	if !fw.IsStopped() {
		t.Error("source watch was not stopped")
	}
}

func TestWatchStreamConversionFailure(t *testing.T) {
	fw := watch.NewFakeWithChanSize(10, false)
	fw.Modify(&corev1.Node{})

	events := collect(t, NewWatchStream(fw, testConverter))

	want := []EventType{Error}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Errorf("NewWatchStream(...): -want types, +got types:\n%s", diff)
	}
}

func TestWatchStreamStopReleasesSource(t *testing.T) {
	fw := watch.NewFakeWithChanSize(10, false)
	fw.Add(testPod(corev1.PodPending))
	fw.Modify(testPod(corev1.PodPending))

	s := NewWatchStream(fw, testConverter)
	<-s.Events()
	s.Stop()
	s.Stop()

	collect(t, s)

	if !fw.IsStopped() {
		t.Error("source watch was not stopped")
	}
}

func TestFilter(t *testing.T) {
	f := Filter{Name: "example", Timeout: 1500 * time.Millisecond}

	if got, want := f.FieldSelector(), "metadata.name=example"; got != want {
		t.Errorf("FieldSelector(): want %q, got %q", want, got)
	}
	if got := f.TimeoutSeconds(); got == nil || *got != 2 {
		t.Errorf("TimeoutSeconds(): want 2, got %v", got)
	}
	if got := (Filter{}).TimeoutSeconds(); got != nil {
		t.Errorf("TimeoutSeconds(): want nil, got %d", *got)
	}
}
