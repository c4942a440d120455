package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hamed0406/tileping/internal/domain"
)

var rule = strings.Repeat("=", 60)

// PrintStatusLine writes the one-line verdict shown as each endpoint finishes.
func PrintStatusLine(w io.Writer, r domain.ProbeResult) {
	fmt.Fprintf(w, "%s %s (%s) - %s\n", r.Status.Symbol(), r.Name, r.RelativeDir, r.Status)
}

func PrintSummary(w io.Writer, run domain.Run) {
	results := run.Results
	if len(results) == 0 {
		fmt.Fprintln(w, "\nNo results to summarize.")
		return
	}
	s := run.Summary

	header(w, "TILE SERVER PING TEST SUMMARY")
	fmt.Fprintf(w, "Base Server URL: %s\n", run.BaseServerURL)
	if run.Detected() {
		fmt.Fprintf(w, "Detected Server URL: %s\n", run.ServerURL)
	}
	fmt.Fprintf(w, "Total Endpoints: %s\n", humanize.Comma(int64(s.TotalEndpoints)))
	fmt.Fprintf(w, "  ✓ Healthy: %d\n", s.Healthy)
	fmt.Fprintf(w, "  ⚠ Partial: %d\n", s.Partial)
	fmt.Fprintf(w, "  ✗ Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "  ? Error: %d\n", s.Error)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Tiles Tested: %s\n", humanize.Comma(int64(s.TotalSuccessfulTiles+s.TotalFailedTiles)))
	fmt.Fprintf(w, "  Successful: %s\n", humanize.Comma(int64(s.TotalSuccessfulTiles)))
	fmt.Fprintf(w, "  Failed: %s\n", humanize.Comma(int64(s.TotalFailedTiles)))
	if n := bytesReceived(results); n > 0 {
		fmt.Fprintf(w, "  Received: %s\n", humanize.Bytes(n))
	}
	if !run.StartedAt.IsZero() && !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	fmt.Fprintln(w, "\nSample URLs tested:")
	for _, r := range results {
		if len(r.SampleURLs) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s (%s):\n", r.Name, r.RelativeDir)
		for _, u := range r.SampleURLs {
			fmt.Fprintf(w, "    %s\n", u)
		}
	}

	header(w, "ALL ENDPOINTS TESTED")
	for _, r := range results {
		fmt.Fprintf(w, "%s %s (%s) - %s\n", r.Status.Symbol(), r.Name, r.RelativeDir, strings.ToUpper(string(r.Status)))
		fmt.Fprintf(w, "    Successful: %d, Failed: %d\n", r.SuccessfulTiles, r.FailedTiles)
		if r.AvgResponseTime != nil {
			fmt.Fprintf(w, "    Avg Response Time: %.3fs\n", *r.AvgResponseTime)
		}
		if len(r.Errors) > 0 {
			fmt.Fprintf(w, "    Errors: %d\n", len(r.Errors))
		}
		fmt.Fprintln(w)
	}

	var problems []domain.ProbeResult
	for _, r := range results {
		if r.Status.Problem() || r.Status == domain.StatusPartial {
			problems = append(problems, r)
		}
	}
	if len(problems) > 0 {
		header(w, "DETAILED RESULTS FOR PROBLEM ENDPOINTS")
		for _, r := range problems {
			printProblem(w, r)
		}
	}

	var fast []domain.ProbeResult
	for _, r := range results {
		if r.Status == domain.StatusHealthy && r.AvgResponseTime != nil {
			fast = append(fast, r)
		}
	}
	if len(fast) > 0 {
		slices.SortStableFunc(fast, func(a, b domain.ProbeResult) int {
			switch {
			case *a.AvgResponseTime < *b.AvgResponseTime:
				return -1
			case *a.AvgResponseTime > *b.AvgResponseTime:
				return 1
			}
			return 0
		})
		header(w, "PERFORMANCE SUMMARY (HEALTHY ENDPOINTS)")
		for _, r := range fast {
			fmt.Fprintf(w, "%s: %.3fs avg\n", r.Name, *r.AvgResponseTime)
		}
	}

	var slow []domain.ProbeResult
	for _, r := range results {
		if r.SlowTiles > 0 {
			slow = append(slow, r)
		}
	}
	if len(slow) > 0 {
		fmt.Fprintln(w, "\nSlow tiles:")
		for _, r := range slow {
			fmt.Fprintf(w, "  %s (%s): %d of %d successful tiles\n", r.Name, r.RelativeDir, r.SlowTiles, r.SuccessfulTiles)
		}
	}
}

func printProblem(w io.Writer, r domain.ProbeResult) {
	fmt.Fprintf(w, "\nEndpoint: %s (%s)\n", r.Name, r.RelativeDir)
	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(string(r.Status)))
	fmt.Fprintf(w, "Successful tiles: %d\n", r.SuccessfulTiles)
	fmt.Fprintf(w, "Failed tiles: %d\n", r.FailedTiles)
	if r.AvgResponseTime != nil {
		fmt.Fprintf(w, "Avg response time: %.3fs\n", *r.AvgResponseTime)
	}
	if len(r.SampleURLs) > 0 {
		fmt.Fprintln(w, "Sample URLs:")
		for _, u := range r.SampleURLs[:min(2, len(r.SampleURLs))] {
			fmt.Fprintf(w, "  %s\n", u)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if r.Metadata != nil && r.Metadata.Error != "" {
		fmt.Fprintf(w, "Metadata: %s (%s)\n", r.Metadata.Error, r.Metadata.URL)
	}
}

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, title, rule)
}

func bytesReceived(results []domain.ProbeResult) uint64 {
	var n uint64
	for _, r := range results {
		for _, d := range r.TileDetails {
			n += uint64(d.ContentLength)
		}
	}
	return n
}
