// Command switchbot-key retrieves the encryption key of a SwitchBot lock,
// signing in either through the browser or with a username and password.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naotama2002/switchbot-key/internal/callback"
	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

// Version can be set during build with -ldflags
var version = "dev"

const (
	ExitCodeSuccess    = 0
	ExitCodeError      = 1
	ExitCodeAuthFailed = 3
	// ExitCodeCancelled follows the shell convention for SIGINT.
	ExitCodeCancelled = 130
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "switchbot-key",
		Short: "Retrieve the encryption key of a SwitchBot lock",
		Long: `switchbot-key signs in to your SwitchBot account and retrieves the
encryption key of a lock, for use with local Bluetooth control.

web-auth opens the SwitchBot login page in your browser. The login redirect
comes back through a temporary switchbot:// URL handler that is removed as
soon as the login finishes or is interrupted.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "switchbot-key version %s\n" .Version}}`)

	opts.bindFlags(root)

	root.AddCommand(
		newWebAuthCmd(opts),
		newLoginCmd(opts),
		newCleanupCmd(opts),
		newRelayCmd(),
		newVersionCmd(),
	)
	return root
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, callback.ErrWaitCancelled), errors.Is(err, callback.ErrWaitTimeout):
		return ExitCodeCancelled
	case apperrors.IsType(err, apperrors.AuthenticationError), apperrors.IsType(err, apperrors.AuthorizationError):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of switchbot-key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "switchbot-key version %s\n", version)
		},
	}
}
