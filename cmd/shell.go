package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nicklasfrahm/podsh/pkg/config"
	"github.com/nicklasfrahm/podsh/pkg/ops"
)

var shellFlags struct {
	namespace      string
	name           string
	image          string
	kubeconfig     string
	shell          []string
	tty            bool
	readyTimeout   time.Duration
	sessionTimeout time.Duration
	tolerate       bool
	debug          bool
}

var shellCmd = &cobra.Command{
	Use:   "shell [config]",
	Short: "Open a shell in an ephemeral pod",
	Long: `Open an interactive shell in a new pod and delete
the pod once the shell exits.

By default the command reads an optional "podsh.yml"
config file in the current directory. You may override
this by passing a path to the configuration file as a
CLI argument. Flags take precedence over the file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if shellFlags.debug {
			level = zerolog.DebugLevel
		}

		logger := log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(level)

		opts := []ops.Option{
			ops.WithLogger(&logger),
			ops.WithOverrides(overrides(cmd)),
		}

		// Use manual override for config path if provided.
		if len(args) == 1 {
			opts = append(opts, ops.WithConfigPath(args[0]))
		}

		return ops.Shell(opts...)
	},
}

// overrides collects the flags that were set explicitly.
func overrides(cmd *cobra.Command) *config.Config {
	flags := cmd.Flags()
	cfg := &config.Config{
		Namespace:      shellFlags.namespace,
		Name:           shellFlags.name,
		Image:          shellFlags.image,
		KubeConfig:     shellFlags.kubeconfig,
		Shell:          shellFlags.shell,
		ReadyTimeout:   shellFlags.readyTimeout,
		SessionTimeout: shellFlags.sessionTimeout,
	}

	if flags.Changed("tty") {
		cfg.TTY = &shellFlags.tty
	}
	if flags.Changed("tolerate-existing") {
		cfg.TolerateExisting = &shellFlags.tolerate
	}

	return cfg
}

func init() {
	flags := shellCmd.Flags()
	flags.StringVarP(&shellFlags.namespace, "namespace", "n", "", "namespace of the pod")
	flags.StringVar(&shellFlags.name, "name", "", "name of the pod (generated if empty)")
	flags.StringVar(&shellFlags.image, "image", "", "container image of the pod")
	flags.StringVar(&shellFlags.kubeconfig, "kubeconfig", "", "path to the kubeconfig file")
	flags.StringSliceVar(&shellFlags.shell, "shell", nil, "command to attach to")
	flags.BoolVarP(&shellFlags.tty, "tty", "t", true, "allocate a tty")
	flags.DurationVar(&shellFlags.readyTimeout, "ready-timeout", 0, "time to wait for the pod to run")
	flags.DurationVar(&shellFlags.sessionTimeout, "session-timeout", 0, "maximum duration of the session")
	flags.BoolVar(&shellFlags.tolerate, "tolerate-existing", false, "attach to an existing pod with the same name and delete it afterwards")
	flags.BoolVar(&shellFlags.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(shellCmd)
}
