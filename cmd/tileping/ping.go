package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/report"
	"github.com/hamed0406/tileping/internal/scheduler"
)

func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping every discovered endpoint once and print a summary",
		Long: `Discover all .webconf files, request sample tiles (0/0/0, 1/0/0 and 2/1/1)
from every dataset and print a status line per endpoint followed by a summary.
The exit status is 1 when any endpoint failed.`,
		Example: `  # Ping the server named by TILE_SERVER_URL
  tileping ping

  # Explicit server and webconf directory, keep a YAML report
  tileping ping --server http://tiles.local:62134 --webconf ./webconf --report out/report.yaml

  # Only the summary, exact URL
  tileping ping --quiet --no-auto-detect`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPing(cmd)
		},
	}
}

func runPing(cmd *cobra.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := a.cfg

	fmt.Fprintln(out, "AHTSE Tile Server Ping Test")

	pass := &scheduler.Pass{
		Logger:        a.logger,
		WebconfRoot:   cfg.Webconf,
		BaseURL:       cfg.Server,
		Resolver:      a.resolver(),
		Fetcher:       a.fetcher(),
		Workers:       cfg.Workers,
		CheckMetadata: cfg.CheckMetadata,
		SlowThreshold: cfg.SlowThreshold,
		OnResolved: func(serverURL string, detected bool) {
			if detected && serverURL != cfg.Server {
				fmt.Fprintf(out, "Server auto-detected: %s -> %s\n", cfg.Server, serverURL)
			}
			fmt.Fprintf(out, "Server URL: %s\n", serverURL)
			fmt.Fprintf(out, "Webconf Root: %s\n\n", cfg.Webconf)
		},
	}
	if !cfg.Quiet {
		pass.OnResult = func(r domain.ProbeResult) {
			report.PrintStatusLine(out, r)
		}
	}

	run := pass.Check(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(run.Results) == 0 {
		fmt.Fprintln(out, "No endpoints discovered from webconf files.")
	}

	if !cfg.Quiet {
		fmt.Fprintln(out)
	}
	report.PrintSummary(out, run)

	if cfg.SaveReport {
		path := cfg.ReportFile(report.DefaultReportName(time.Now()))
		if err := report.Save(path, run); err != nil {
			fmt.Fprintf(out, "\nWarning: could not save report to %s: %v\n", path, err)
		} else {
			fmt.Fprintf(out, "\nDetailed report saved to: %s\n", path)
		}
	}

	if code := report.ExitCode(run.Results); code != 0 {
		return exitCode(code)
	}
	return nil
}
