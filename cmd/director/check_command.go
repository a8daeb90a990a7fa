package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/notifications"
	"github.com/bozzyboy/nano-director-5/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify provider credentials and working directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if sendTest {
				results = append(results, sendTestNotification(cmd.Context(), cfg.Notifications))
			}
			out := cmd.OutOrStdout()
			p := newPainter(out)
			for _, r := range results {
				t := toneOK
				if !r.Passed {
					t = toneError
				}
				fmt.Fprintln(out, p.statusLine(r.Name, t, r.Detail))
			}
			if preflight.Failed(results) {
				return errors.New("one or more checks failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Also send a test push notification")
	return cmd
}

func sendTestNotification(ctx context.Context, cfg config.Notifications) preflight.Result {
	const name = "Notifications"
	if cfg.NtfyTopic == "" {
		return preflight.Result{Name: name, Detail: "notifications.ntfy_topic not set"}
	}
	if err := notifications.NewService(cfg).TestNotification(ctx); err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{Name: name, Passed: true, Detail: "test message sent"}
}
