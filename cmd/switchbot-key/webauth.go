package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/naotama2002/switchbot-key/internal/config"
	"github.com/naotama2002/switchbot-key/internal/switchbot"
	"github.com/naotama2002/switchbot-key/internal/utils"
	"github.com/naotama2002/switchbot-key/internal/webauth"
)

func newWebAuthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "web-auth <device-mac>",
		Short: "Sign in through the browser and print the lock's encryption key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mac, err := switchbot.NormalizeMAC(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireClient(); err != nil {
				return err
			}

			ctx, cancel := utils.NotifyContext(cmd.Context())
			defer cancel()

			token, err := browserLogin(ctx, cfg)
			if err != nil {
				return err
			}
			return printKey(ctx, cmd.OutOrStdout(), cfg, mac, token)
		},
	}
}

func browserLogin(ctx context.Context, cfg *config.Config) (string, error) {
	registrar, err := newRegistrar(cfg)
	if err != nil {
		return "", err
	}

	provider, err := switchbot.NewProvider(switchbot.ProviderConfig{
		Domain:       cfg.CognitoDomain,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scheme:       cfg.Scheme,
		ResponseType: cfg.ResponseType,
		HTTP:         newHTTPClient(),
	})
	if err != nil {
		return "", err
	}

	flow := webauth.New(webauth.Options{
		Scheme:    cfg.Scheme,
		Addr:      cfg.ListenAddr,
		Timeout:   cfg.CallbackTimeout,
		Registrar: registrar,
		LockPath:  config.LockPath(),
	})
	return webauth.Authenticate(ctx, flow, provider)
}

func printKey(ctx context.Context, out io.Writer, cfg *config.Config, mac, token string) error {
	key, err := switchbot.NewKeyClient(cfg.APIBaseURL, newHTTPClient()).RetrieveEncryptionKey(ctx, mac, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Key ID: %s\n", key.KeyID)
	fmt.Fprintf(out, "Encryption key: %s\n", key.Key)
	return nil
}
