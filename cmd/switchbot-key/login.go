package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/switchbot"
	"github.com/naotama2002/switchbot-key/internal/utils"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <device-mac> <username>",
		Short: "Sign in with username and password and print the lock's encryption key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mac, err := switchbot.NormalizeMAC(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			client, err := switchbot.NewCognitoClient(switchbot.CognitoConfig{
				Region:       cfg.Region,
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     cfg.CognitoEndpoint,
				HTTP:         newHTTPClient(),
			})
			if err != nil {
				return err
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := utils.NotifyContext(cmd.Context())
			defer cancel()

			token, err := client.PasswordLogin(ctx, args[1], password)
			if err != nil {
				return err
			}
			return printKey(ctx, cmd.OutOrStdout(), cfg, mac, token)
		},
	}
}

// readPassword prompts without echo on a terminal, or reads one line from
// in otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", apperrors.NewValidationError("empty password")
	}
	return password, nil
}
