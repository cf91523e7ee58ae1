package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove a URL handler left behind by an interrupted login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			registrar, err := newRegistrar(cfg)
			if err != nil {
				return err
			}

			installed, err := registrar.Installed(cfg.Scheme)
			if err != nil {
				return err
			}
			if !installed {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s:// URL handler registered\n", cfg.Scheme)
				return nil
			}

			if err := registrar.Cleanup(registrar.Handle(cfg.Scheme)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s:// URL handler\n", cfg.Scheme)
			return nil
		},
	}
}
