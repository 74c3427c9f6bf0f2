package session

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/nicklasfrahm/podsh/pkg/attach"
	"github.com/nicklasfrahm/podsh/pkg/lifecycle"
)

// Descriptor is the definition of the workload a session runs in.
// It is not modified once the session started.
type Descriptor struct {
	// Name must be unique within the namespace.
	Name      string
	Namespace string
	Image     string
	// Command is the entrypoint of the workload. It must keep the
	// workload running for the duration of the session.
	Command []string
	// Container is the name of the container to attach to. It
	// defaults to the name of the workload.
	Container string
}

// ContainerName returns the name of the container to attach to.
func (d *Descriptor) ContainerName() string {
	if d.Container != "" {
		return d.Container
	}
	return d.Name
}

// Validate verifies that the workload can be created.
func (d *Descriptor) Validate() error {
	if d == nil {
		return errors.New("descriptor empty")
	}

	if msgs := validation.IsDNS1123Subdomain(d.Name); len(msgs) > 0 {
		return errors.Errorf("invalid workload name %q: %s", d.Name, msgs[0])
	}

	if msgs := validation.IsDNS1123Label(d.Namespace); len(msgs) > 0 {
		return errors.Errorf("invalid namespace %q: %s", d.Namespace, msgs[0])
	}

	if msgs := validation.IsDNS1123Label(d.ContainerName()); len(msgs) > 0 {
		return errors.Errorf("invalid container name %q: %s", d.ContainerName(), msgs[0])
	}

	if d.Image == "" {
		return errors.New("no image specified")
	}

	return nil
}

// AttachOptions selects the channels of an exec session.
type AttachOptions struct {
	// Container is filled in by the orchestrator.
	Container string
	Command   []string
	Stdin     bool
	Stdout    bool
	Stderr    bool
	TTY       bool
}

// ControlPlane is the cluster API a session is orchestrated against.
// The orchestrator is the only caller of Create and Delete.
type ControlPlane interface {
	// Create submits the workload. It wraps ErrAlreadyExists if a
	// workload with the same name exists.
	Create(ctx context.Context, descriptor *Descriptor) error
	// Get returns the current state of the workload together with the
	// resume token it was read at. It wraps ErrNotFound if the
	// workload does not exist.
	Get(ctx context.Context, name string) (lifecycle.Snapshot, string, error)
	// Watch subscribes to the lifecycle events matching the filter.
	Watch(ctx context.Context, filter lifecycle.Filter) (lifecycle.Stream, error)
	// Attach opens an exec session in the running workload.
	Attach(ctx context.Context, name string, options AttachOptions) (*attach.ChannelSet, error)
	// Delete removes the workload. It wraps ErrNotFound if the
	// workload does not exist.
	Delete(ctx context.Context, name string) error
}
