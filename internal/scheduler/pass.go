package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/probe"
	"github.com/hamed0406/tileping/internal/report"
	"github.com/hamed0406/tileping/internal/tileurl"
	"github.com/hamed0406/tileping/internal/webconf"
)

// Checker performs one complete ping run.
type Checker interface {
	Check(ctx context.Context) domain.Run
}

// Pass discovers endpoints under WebconfRoot, resolves the server URL and
// pings every endpoint.
type Pass struct {
	Logger        *zap.Logger
	WebconfRoot   string
	BaseURL       string
	Resolver      probe.BaseURLResolver
	Fetcher       probe.Fetcher
	Workers       int
	CheckMetadata bool
	SlowThreshold time.Duration

	// OnResult is forwarded to the prober and sees results in completion
	// order. The returned run is sorted by directory and name.
	OnResult func(domain.ProbeResult)
	// OnResolved is called once the server URL for this pass is known.
	OnResolved func(serverURL string, detected bool)
}

func (p *Pass) Check(ctx context.Context) domain.Run {
	started := time.Now()

	resolver := p.Resolver
	if resolver == nil {
		resolver = probe.NoopResolver{}
	}
	server, detected := resolver.Resolve(ctx, p.BaseURL)
	if p.OnResolved != nil {
		p.OnResolved(server, detected)
	}

	eps := webconf.Discover(p.WebconfRoot, p.Logger)
	p.Logger.Info("ping_started",
		zap.String("server_url", server),
		zap.String("webconf_root", p.WebconfRoot),
		zap.Int("endpoints", len(eps)),
	)

	prober := probe.NewProber(p.Logger, p.Fetcher, tileurl.New(server))
	prober.CheckMetadata = p.CheckMetadata
	prober.SlowThreshold = p.SlowThreshold
	prober.OnResult = p.OnResult
	results := prober.PingAll(ctx, eps, p.Workers)
	report.SortResults(results)

	run := report.NewRun(p.BaseURL, server, p.WebconfRoot, started, time.Now(), results)
	p.Logger.Info("ping_finished",
		zap.Int("healthy", run.Summary.Healthy),
		zap.Int("partial", run.Summary.Partial),
		zap.Int("failed", run.Summary.Failed),
		zap.Int("error", run.Summary.Error),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run
}
