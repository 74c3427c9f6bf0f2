package sshx

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Cmd describes a command to be executed on the remote host.
type Cmd struct {
	Cmd    string
	Env    map[string]string
	Shell  bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String compiles the command to be executed.
func (c *Cmd) String() string {
	cmd := c.Cmd

	// Environment variables require a shell to be injected.
	if c.Shell || c.Env != nil {
		cmd = "sh -c " + quote(c.Cmd)
	}

	if c.Env != nil {
		vars := make([]string, 0, len(c.Env))
		for _, k := range slices.Sorted(maps.Keys(c.Env)) {
			vars = append(vars, fmt.Sprintf("%s=%s", k, quote(c.Env[k])))
		}

		cmd = fmt.Sprintf("env %s %s", strings.Join(vars, " "), cmd)
	}

	return cmd
}

// Do runs the command in a new session and waits for it to exit.
func (client *Client) Do(cmd Cmd) error {
	session, err := client.NewSession()
	if err != nil {
		return errors.Wrap(err, "cannot open session")
	}
	defer session.Close()

	session.Stdin = cmd.Stdin
	session.Stdout = cmd.Stdout
	session.Stderr = cmd.Stderr

	command := cmd.String()
	client.Logger.Debug().Str("cmd", command).Msg("Running command")

	return errors.Wrapf(session.Run(command), "cannot run %q", cmd.Cmd)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
