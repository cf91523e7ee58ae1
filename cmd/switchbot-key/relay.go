package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/naotama2002/switchbot-key/internal/config"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

// envRelayLog names a file the relay appends its diagnostics to.
const envRelayLog = config.EnvPrefix + "RELAY_LOG"

// newRelayCmd is the entry point the OS launches for the registered scheme.
// It has no one to report to, so it always exits 0.
func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:                relay.SubcommandName + " --addr <host:port> [--token <token>] (<url> | --apple-event)",
		Short:              "Forward a redirect URL to the waiting login (launched by the OS)",
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog := relayLogger()
			defer closeLog()

			inv, err := relay.ParseInvocation(args)
			if err != nil {
				logger.Printf("relay: %v", err)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), relay.DialTimeout)
			defer cancel()

			if err := relay.Deliver(ctx, inv); err != nil {
				logger.Printf("relay: %v", err)
				return nil
			}
			logger.Printf("relay: delivered callback to %s", inv.Addr)
			return nil
		},
	}
}

func relayLogger() (*log.Logger, func()) {
	discard := log.New(io.Discard, "", 0)
	path := os.Getenv(envRelayLog)
	if path == "" {
		return discard, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return discard, func() {}
	}
	return log.New(f, "", log.LstdFlags), func() { _ = f.Close() }
}
