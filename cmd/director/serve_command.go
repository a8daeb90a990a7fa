package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/api"
	"github.com/bozzyboy/nano-director-5/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logs, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{serverFeedsAutosave: true}, func(c context.Context, a *app) error {
				signalCtx, cancel := signal.NotifyContext(c, syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				address := strings.TrimSpace(bind)
				if address == "" {
					address = a.cfg.Paths.APIBind
				}
				server, err := api.New(api.Config{
					Bind:     address,
					Director: a.director,
					Router:   a.router,
					Autosave: a.autosave,
					Logs:     logs,
					Logger:   a.logger,
				})
				if err != nil {
					return err
				}
				if err := server.Start(signalCtx); err != nil {
					return err
				}
				// Destinations adopted over the API change no project state.
				a.touch()

				fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", server.Addr())
				<-signalCtx.Done()
				server.Stop()
				a.logger.Info("director server shutting down", logging.String("address", address))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to paths.api_bind)")
	return cmd
}
