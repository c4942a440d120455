package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/config"
	"github.com/hamed0406/tileping/internal/httpapi"
	apimw "github.com/hamed0406/tileping/internal/httpapi/middleware"
	"github.com/hamed0406/tileping/internal/metrics"
	"github.com/hamed0406/tileping/internal/notify"
	"github.com/hamed0406/tileping/internal/repo"
	"github.com/hamed0406/tileping/internal/repo/memory"
	"github.com/hamed0406/tileping/internal/repo/postgres"
	"github.com/hamed0406/tileping/internal/scheduler"
	"github.com/hamed0406/tileping/internal/watch"
)

type store interface {
	repo.RunStore
	repo.AlertStore
}

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Ping on a schedule and serve run history over HTTP",
		Long: `Run a ping pass immediately and then every --interval, keep the run history
(in memory, or in Postgres with --database-url), send a notification when an
endpoint changes status and serve the results on a small JSON API.`,
		Example: `  tileping serve --addr :8080 --interval 10m --watch
  TILEPING_API_ADMIN_KEYS=secret tileping serve --database-url postgres://localhost/tileping`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
	config.AddServeFlags(cmd.Flags())
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("store_memory", zap.Int("keep", memory.DefaultKeep))
		return memory.New(memory.DefaultKeep), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("store_postgres")
	return pg, pg.Close, nil
}

func notifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	m := notify.Multi{notify.Log{Logger: logger}}
	if s := notify.NewSlack(cfg.Slack.Webhook); s != nil {
		m = append(m, s)
	}
	if cfg.MQTT.Broker == "" {
		return m, func() {}, nil
	}
	q, closeMQTT, err := notify.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, logger)
	if err != nil {
		return nil, nil, err
	}
	return append(m, q), closeMQTT, nil
}

func serve(ctx context.Context, a *app) (err error) {
	cfg, logger := a.cfg, a.logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pass := &scheduler.Pass{
		Logger:        logger,
		WebconfRoot:   cfg.Webconf,
		BaseURL:       cfg.Server,
		Resolver:      a.resolver(),
		Fetcher:       a.fetcher(),
		Workers:       cfg.Workers,
		CheckMetadata: cfg.CheckMetadata,
		SlowThreshold: cfg.SlowThreshold,
	}
	n, closeNotifier, err := notifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	alerter := scheduler.NewAlerter(st, n, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.Slack.OnRecovery,
		Cooldown:        cfg.Slack.Cooldown,
	})
	m := metrics.New()
	runner := scheduler.NewRunner(logger, pass, st, cfg.Serve.Interval, alerter, m)

	if cfg.Serve.Watch {
		w, werr := watch.New(logger, cfg.Webconf, watch.DefaultDebounce, func() { runner.Trigger() })
		if werr != nil {
			return fmt.Errorf("watch: %w", werr)
		}
		if werr := w.Start(ctx); werr != nil {
			return multierr.Append(fmt.Errorf("watch %s: %w", cfg.Webconf, werr), w.Stop())
		}
		defer func() { err = multierr.Append(err, w.Stop()) }()
	}

	api := httpapi.NewServer(logger, st, runner, cfg.Webconf)
	api.Metrics = m.Handler()
	keys := apimw.Keys{Public: cfg.API.PublicKeys, Admin: cfg.API.AdminKeys}
	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           api.Router(keys, cfg.API.TriggerRPM, cfg.API.TriggerBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Serve.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case lerr := <-serveErr:
		cancel()
		<-runnerDone
		if !errors.Is(lerr, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.Serve.Addr, lerr)
		}
		return nil
	}

	logger.Info("api_shutdown")
	shutdownCtx, stopShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopShutdown()
	err = srv.Shutdown(shutdownCtx)
	<-runnerDone
	return err
}
