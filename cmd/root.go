package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"
var help bool

var rootCmd = &cobra.Command{
	Use:   "podsh",
	Short: "An interactive shell in an ephemeral pod",
	Long: `                 _     _
 _ __   ___   __| |___| |__
| '_ \ / _ \ / _' / __| '_ \
| |_) | (_) | (_| \__ \ | | |
| .__/ \___/ \__,_|___/_| |_|
|_|

Creates a pod, attaches an interactive shell to it
and deletes the pod once the shell exits, the session
times out or the command is interrupted.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if help {
			cmd.Help()
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&help, "help", "h", false, "display help for command")
}

// Execute starts the invocation of the command line interface.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
