package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/logs"
)

const followWait = 5 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		server    string
		component string
		project   string
		fileOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output from a running server or the log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			if follow {
				var cancel context.CancelFunc
				runCtx, cancel = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			if !fileOnly {
				bind := strings.TrimSpace(server)
				if bind == "" {
					bind = cfg.Paths.APIBind
				}
				client, err := logs.NewStreamClient(bind)
				if err != nil {
					return fmt.Errorf("log server address: %w", err)
				}
				q := logs.StreamQuery{Limit: lines, Tail: true, Component: component, Project: project}
				err = streamFromServer(runCtx, out, client, q, follow)
				if err == nil || !logs.IsAPIUnavailable(err) {
					return ignoreInterrupt(err)
				}
				if server != "" {
					return fmt.Errorf("no server answering at %s: %w", server, err)
				}
			}
			return ignoreInterrupt(tailFile(runCtx, out, logFilePath(cfg), lines, follow))
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&server, "server", "", "Server address (defaults to paths.api_bind)")
	cmd.Flags().StringVar(&component, "component", "", "Only events from this component (server only)")
	cmd.Flags().StringVar(&project, "project", "", "Only events for this project (server only)")
	cmd.Flags().BoolVar(&fileOnly, "file", false, "Read the log file even when a server is running")
	return cmd
}

func streamFromServer(ctx context.Context, out io.Writer, client *logs.StreamClient, q logs.StreamQuery, follow bool) error {
	page, err := client.Fetch(ctx, q)
	if err != nil {
		return err
	}
	for {
		for _, evt := range page.Events {
			fmt.Fprintln(out, formatLogEvent(evt))
		}
		if !follow {
			return nil
		}
		q.Since, q.Tail, q.Follow = page.Next, false, true
		if page, err = client.Fetch(ctx, q); err != nil {
			return err
		}
	}
}

func tailFile(ctx context.Context, out io.Writer, path string, lines int, follow bool) error {
	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: lines})
	for {
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, line)
		}
		if !follow {
			return nil
		}
		result, err = logs.Tail(ctx, path, logs.TailOptions{Offset: result.Offset, Follow: true, Wait: followWait})
	}
}

// formatLogEvent renders a streamed event the way the console handler does.
func formatLogEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(evt.Level))
	b.WriteByte(' ')
	if evt.Component != "" {
		b.WriteString(evt.Component)
		b.WriteString(": ")
	}
	b.WriteString(evt.Message)
	if evt.Project != "" {
		fmt.Fprintf(&b, " project=%q", evt.Project)
	}
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	return b.String()
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
