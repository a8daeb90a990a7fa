package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/logging"
)

const logStreamCapacity = 1024

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logs       *logging.StreamHub
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once. Records also land in an
// in-memory stream that `serve` exposes over the API.
func (c *commandContext) ensureLogger() (*slog.Logger, *logging.StreamHub, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logs = logging.NewStreamHub(logStreamCapacity)
		c.logger, c.loggerErr = logging.NewFromConfig(cfg, c.logs)
	})
	return c.logger, c.logs, c.loggerErr
}

// withApp opens the project stack, runs fn, and persists the working copy.
func (c *commandContext) withApp(cmd *cobra.Command, opts appOptions, fn func(context.Context, *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, _, err := c.ensureLogger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if closeErr := a.close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
