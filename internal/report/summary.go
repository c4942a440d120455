// Package report aggregates probe results and renders them for people and files.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/hamed0406/tileping/internal/domain"
)

func Summarize(results []domain.ProbeResult) domain.Summary {
	s := domain.Summary{TotalEndpoints: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.StatusHealthy:
			s.Healthy++
		case domain.StatusPartial:
			s.Partial++
		case domain.StatusFailed:
			s.Failed++
		case domain.StatusError:
			s.Error++
		}
		s.TotalSuccessfulTiles += r.SuccessfulTiles
		s.TotalFailedTiles += r.FailedTiles
	}
	return s
}

// SortResults orders results by relative directory, then name.
func SortResults(results []domain.ProbeResult) {
	slices.SortStableFunc(results, func(a, b domain.ProbeResult) int {
		return cmp.Or(
			cmp.Compare(a.RelativeDir, b.RelativeDir),
			cmp.Compare(a.Name, b.Name),
		)
	})
}

// NewRun assembles a finished pass. finished defaults to now.
func NewRun(baseURL, serverURL, webconfRoot string, started, finished time.Time, results []domain.ProbeResult) domain.Run {
	if finished.IsZero() {
		finished = time.Now()
	}
	if results == nil {
		results = []domain.ProbeResult{}
	}
	return domain.Run{
		Timestamp:     float64(finished.UnixNano()) / float64(time.Second),
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
		BaseServerURL: baseURL,
		ServerURL:     serverURL,
		WebconfRoot:   webconfRoot,
		Summary:       Summarize(results),
		Results:       results,
	}
}

// ExitCode is 0 when no endpoint failed or errored.
func ExitCode(results []domain.ProbeResult) int {
	for _, r := range results {
		if r.Status.Problem() {
			return 1
		}
	}
	return 0
}
