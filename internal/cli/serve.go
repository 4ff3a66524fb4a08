package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query service",
		Long: `Run the HTTP service: filtered searches, raw SPARQL, hierarchy and
graph views, cached analysis records and journalled updates.

The service stops on SIGINT or SIGTERM, draining in-flight requests.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			svc, err := WireService(cfg, rootOpts.logger(), true)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "wiring service", err)
			}
			defer svc.Close()

			srv, err := svc.Server()
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "creating server", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, "serving", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
