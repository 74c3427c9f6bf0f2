package ops

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/rand"

	"github.com/nicklasfrahm/podsh/pkg/attach"
	"github.com/nicklasfrahm/podsh/pkg/config"
	"github.com/nicklasfrahm/podsh/pkg/kube"
	"github.com/nicklasfrahm/podsh/pkg/session"
	"github.com/nicklasfrahm/podsh/pkg/tty"
)

const (
	// DefaultNamespace is used if neither the configuration
	// nor the kubeconfig select a namespace.
	DefaultNamespace = "default"
	// SessionLabel identifies the session a pod belongs to.
	SessionLabel = "podsh.nicklasfrahm.dev/session"
)

// Shell runs an interactive shell in an ephemeral pod. The pod is
// deleted when the shell exits, the session times out or the process
// is interrupted. An error is returned unless the session completed.
func Shell(options ...Option) error {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger := opts.Logger.With().Str("session", sessionID).Logger()

	conn, err := Connect(cfg, &logger)
	if err != nil {
		return err
	}

	terminal := tty.New(os.Stdin, os.Stdout)
	useTTY := *cfg.TTY
	if useTTY && !terminal.IsTerminal() {
		logger.Warn().Msg("Disabling tty as stdin is not a terminal")
		useTTY = false
	}

	kubeOptions := []kube.Option{
		kube.WithLogger(&logger),
		kube.WithTerminalSizeQueue(terminal),
		kube.WithLabel(SessionLabel, sessionID),
	}
	if cfg.GracePeriod != nil {
		kubeOptions = append(kubeOptions, kube.WithGracePeriod(*cfg.GracePeriod))
	}

	descriptor := newDescriptor(cfg, conn.Namespace)
	controlPlane, err := kube.New(conn.Client, conn.Config, descriptor.Namespace, kubeOptions...)
	if err != nil {
		return err
	}

	orchestrator, err := session.New(controlPlane,
		session.WithLogger(&logger),
		session.WithStreams(attach.Streams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}),
		session.WithAttachOptions(attachOptions(cfg, useTTY)),
		session.WithTerminal(terminal),
		session.WithReadyTimeout(cfg.ReadyTimeout),
		session.WithSessionTimeout(cfg.SessionTimeout),
		session.WithCleanupTimeout(cfg.CleanupTimeout),
		session.WithTolerateExisting(*cfg.TolerateExisting),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := orchestrator.Run(ctx, descriptor)
	if report != nil && report.Result != nil {
		logger.Info().Stringer("result", report.Result).Msg("Session ended")
	}

	return errors.Wrap(err, "session failed")
}

// newDescriptor describes the pod of the session. The namespace of the
// configuration takes precedence over the one of the kubeconfig.
func newDescriptor(cfg *config.Config, namespace string) *session.Descriptor {
	if cfg.Namespace != "" {
		namespace = cfg.Namespace
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	name := cfg.Name
	if name == "" {
		name = config.Program + "-" + rand.String(5)
	}

	return &session.Descriptor{
		Name:      name,
		Namespace: namespace,
		Image:     cfg.Image,
		Command:   cfg.Command,
		Container: cfg.Container,
	}
}

// attachOptions selects the exec channels. A tty merges stderr into
// stdout, so stderr is only requested without one.
func attachOptions(cfg *config.Config, useTTY bool) session.AttachOptions {
	return session.AttachOptions{
		Command: cfg.Shell,
		Stdin:   true,
		Stdout:  true,
		Stderr:  !useTTY,
		TTY:     useTTY,
	}
}
