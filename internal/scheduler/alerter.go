package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/notify"
	"github.com/hamed0406/tileping/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter notifies when an endpoint's status changes between runs.
type Alerter struct {
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(alertDB repo.AlertStore, notifier notify.Notifier, cfg AlerterConfig) *Alerter {
	return &Alerter{
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Observe(ctx context.Context, run domain.Run) error {
	now := a.now()
	var errs error

	for _, r := range run.Results {
		key := r.Key()
		rec, err := a.alertDB.Get(ctx, key)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("alert state %s: %w", key, err))
			continue
		}
		if rec != nil && rec.LastStatus == r.Status {
			continue
		}

		down := r.Status.Problem()
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		var send bool
		switch {
		case rec == nil:
			// first sighting: only problems are news
			send = down && cooled
		case down:
			send = cooled
		case rec.LastStatus.Problem():
			send = a.cfg.AlertOnRecovery
		default:
			send = true
		}

		if !send {
			// Record the new state. The zero time keeps the last send time for the cooldown.
			errs = multierr.Append(errs, a.alertDB.Set(ctx, key, r.Status, time.Time{}))
			continue
		}

		var prev domain.Status
		if rec != nil {
			prev = rec.LastStatus
		}
		title, text := alertMessage(run, r, prev)
		if err := a.notifier.Send(ctx, title, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify %s: %w", key, err))
		}
		errs = multierr.Append(errs, a.alertDB.Set(ctx, key, r.Status, now))
	}
	return errs
}

func alertMessage(run domain.Run, r domain.ProbeResult, prev domain.Status) (string, string) {
	var title string
	switch {
	case r.Status.Problem():
		title = "🔴 Tile endpoint " + strings.ToUpper(string(r.Status))
	case prev.Problem() && r.Status == domain.StatusHealthy:
		title = "🟢 Tile endpoint RECOVERED"
	default:
		title = "🟡 Tile endpoint " + strings.ToUpper(string(r.Status))
	}

	from := "new"
	if prev != "" {
		from = string(prev)
	}
	latency := "n/a"
	if d, ok := r.AvgLatency(); ok {
		latency = fmt.Sprintf("%.0f ms", float64(d)/float64(time.Millisecond))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Endpoint: %s (%s)\n", r.Name, r.RelativeDir)
	fmt.Fprintf(&b, "Status: %s -> %s\n", from, r.Status)
	fmt.Fprintf(&b, "Tiles: %d ok, %d failed\n", r.SuccessfulTiles, r.FailedTiles)
	fmt.Fprintf(&b, "Latency: %s\n", latency)
	fmt.Fprintf(&b, "Server: %s\n", run.ServerURL)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "First error: %s\n", r.Errors[0])
	}
	fmt.Fprintf(&b, "Checked: %s", run.FinishedAt.Format(time.RFC3339))
	return title, b.String()
}
