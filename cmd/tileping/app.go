package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/config"
	"github.com/hamed0406/tileping/internal/logging"
	"github.com/hamed0406/tileping/internal/probe"
)

// app is what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) fetcher() *probe.HTTPClient {
	retry := probe.DefaultRetryPolicy()
	retry.Total = a.cfg.Retries
	retry.BackoffFactor = a.cfg.Backoff()
	return probe.NewHTTPClient(probe.ClientOptions{
		Timeout:         a.cfg.Timeout,
		MaxRedirects:    3,
		MaxConnsPerHost: a.cfg.Workers,
		Retry:           retry,
	}, a.logger)
}

func (a *app) resolver() probe.BaseURLResolver {
	if !a.cfg.AutoDetect {
		return probe.NoopResolver{}
	}
	return probe.NewPortScanResolver(a.logger)
}
