// Package kube implements the session control plane on top of the
// Kubernetes API.
package kube

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/nicklasfrahm/podsh/pkg/attach"
	"github.com/nicklasfrahm/podsh/pkg/lifecycle"
	"github.com/nicklasfrahm/podsh/pkg/session"
)

// ControlPlane manages pods in a single namespace.
type ControlPlane struct {
	*Options

	Namespace string

	client kubernetes.Interface
	config *rest.Config
}

// New creates a control plane for the given namespace.
func New(client kubernetes.Interface, config *rest.Config, namespace string, options ...Option) (*ControlPlane, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	if opts.RESTClient == nil {
		opts.RESTClient = client.CoreV1().RESTClient()
	}

	return &ControlPlane{
		Options:   opts,
		Namespace: namespace,
		client:    client,
		config:    config,
	}, nil
}

// Create creates the pod described by the descriptor.
func (cp *ControlPlane) Create(ctx context.Context, descriptor *session.Descriptor) error {
	if descriptor.Namespace != cp.Namespace {
		return errors.Errorf("descriptor namespace %q does not match %q", descriptor.Namespace, cp.Namespace)
	}

	_, err := cp.client.CoreV1().Pods(cp.Namespace).Create(ctx, cp.pod(descriptor), metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(session.ErrAlreadyExists, "pod %s/%s", cp.Namespace, descriptor.Name)
	}

	return errors.Wrap(err, "cannot create pod")
}

// Watch watches the pod selected by the filter.
func (cp *ControlPlane) Watch(ctx context.Context, filter lifecycle.Filter) (lifecycle.Stream, error) {
	w, err := cp.client.CoreV1().Pods(cp.Namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector:   filter.FieldSelector(),
		ResourceVersion: filter.ResumeToken,
		TimeoutSeconds:  filter.TimeoutSeconds(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot watch pod")
	}

	return lifecycle.NewWatchStream(w, PodSnapshot), nil
}

// Get returns the current state of the pod and the resource version it
// was read at.
func (cp *ControlPlane) Get(ctx context.Context, name string) (lifecycle.Snapshot, string, error) {
	pod, err := cp.client.CoreV1().Pods(cp.Namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return lifecycle.Snapshot{}, "", errors.Wrapf(session.ErrNotFound, "pod %s/%s", cp.Namespace, name)
	}
	if err != nil {
		return lifecycle.Snapshot{}, "", errors.Wrap(err, "cannot get pod")
	}

	snapshot, err := PodSnapshot(pod)
	if err != nil {
		return lifecycle.Snapshot{}, "", err
	}

	return snapshot, pod.ResourceVersion, nil
}

// Attach starts the command in the pod and returns its channels.
func (cp *ControlPlane) Attach(ctx context.Context, name string, options session.AttachOptions) (*attach.ChannelSet, error) {
	// The API server rejects a separate stderr channel for tty sessions.
	stderr := options.Stderr && !options.TTY

	req := cp.RESTClient.Post().
		Resource("pods").
		Namespace(cp.Namespace).
		Name(name).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: options.Container,
			Command:   options.Command,
			Stdin:     options.Stdin,
			Stdout:    options.Stdout,
			Stderr:    stderr,
			TTY:       options.TTY,
		}, scheme.ParameterCodec)

	executor, err := cp.NewExecutor(cp.config, req.URL())
	if err != nil {
		return nil, errors.Wrap(err, "cannot create executor")
	}

	cp.Logger.Debug().Str("url", req.URL().String()).Msg("Opening exec session")

	streamOptions := remotecommand.StreamOptions{Tty: options.TTY}
	if options.TTY {
		streamOptions.TerminalSizeQueue = cp.TerminalSizeQueue
	}

	return openExec(ctx, executor, streamOptions, options.Stdin, options.Stdout, stderr)
}

// Delete deletes the pod.
func (cp *ControlPlane) Delete(ctx context.Context, name string) error {
	err := cp.client.CoreV1().Pods(cp.Namespace).Delete(ctx, name, metav1.DeleteOptions{
		GracePeriodSeconds: cp.GracePeriod,
	})
	if apierrors.IsNotFound(err) {
		return errors.Wrapf(session.ErrNotFound, "pod %s/%s", cp.Namespace, name)
	}

	return errors.Wrap(err, "cannot delete pod")
}

func (cp *ControlPlane) pod(descriptor *session.Descriptor) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      descriptor.Name,
			Namespace: cp.Namespace,
			Labels:    cp.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    descriptor.ContainerName(),
					Image:   descriptor.Image,
					Command: descriptor.Command,
				},
			},
		},
	}
}

// PodSnapshot converts a watched pod. A pod with an empty status is
// reported without status.
func PodSnapshot(obj runtime.Object) (lifecycle.Snapshot, error) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return lifecycle.Snapshot{}, errors.Errorf("unexpected object of type %T", obj)
	}

	snapshot := lifecycle.Snapshot{Name: pod.Name}
	if !equality.Semantic.DeepEqual(pod.Status, corev1.PodStatus{}) {
		snapshot.Status = &lifecycle.Status{
			Phase:   string(pod.Status.Phase),
			Reason:  pod.Status.Reason,
			Message: pod.Status.Message,
		}
	}

	return snapshot, nil
}
