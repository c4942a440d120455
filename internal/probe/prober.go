package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	"github.com/hamed0406/tileping/internal/tileurl"
)

const DefaultWorkers = 5

// DefaultSlowThreshold marks successful tiles that took at least this long.
const DefaultSlowThreshold = 5 * time.Second

// Prober fetches sample tiles for endpoints.
type Prober struct {
	Fetcher       Fetcher
	URLs          tileurl.Generator
	Coords        []domain.Coord // defaults to domain.SampleCoords
	CheckMetadata bool
	Logger        *zap.Logger
	// SlowThreshold flags slow successful tiles. Zero disables the check.
	SlowThreshold time.Duration

	// OnResult, when set, is called from the collecting goroutine as each
	// endpoint finishes.
	OnResult func(domain.ProbeResult)
}

func NewProber(logger *zap.Logger, f Fetcher, urls tileurl.Generator) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		Fetcher:       f,
		URLs:          urls,
		Coords:        domain.SampleCoords,
		Logger:        logger,
		SlowThreshold: DefaultSlowThreshold,
	}
}

// PingAll probes every endpoint with at most workers in flight. Results come
// back in completion order.
func (p *Prober) PingAll(ctx context.Context, eps []domain.Endpoint, workers int) []domain.ProbeResult {
	if workers < 1 {
		workers = 1
	}
	results := make(chan domain.ProbeResult, len(eps))

	go func() {
		defer close(results)
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for _, ep := range eps {
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() { <-sem }()
				defer wg.Done()
				results <- p.safePing(ctx, ep)
			}()
		}
		wg.Wait()
	}()

	out := make([]domain.ProbeResult, 0, len(eps))
	for r := range results {
		if p.OnResult != nil {
			p.OnResult(r)
		}
		out = append(out, r)
	}
	return out
}

func (p *Prober) safePing(ctx context.Context, ep domain.Endpoint) (res domain.ProbeResult) {
	defer func() {
		if rec := recover(); rec != nil {
			p.Logger.Error("endpoint_probe_panic",
				zap.String("endpoint", ep.Name),
				zap.String("relative_dir", ep.RelativeDir),
				zap.Any("panic", rec),
			)
			res = domain.ErrorResult(ep, rec)
		}
	}()
	return p.PingEndpoint(ctx, ep)
}

// PingEndpoint fetches the sample coordinates one after another.
func (p *Prober) PingEndpoint(ctx context.Context, ep domain.Endpoint) domain.ProbeResult {
	coords := p.Coords
	if coords == nil {
		coords = domain.SampleCoords
	}
	res := domain.ProbeResult{
		Name:          ep.Name,
		RelativeDir:   ep.RelativeDir,
		Status:        domain.StatusUnknown,
		ResponseTimes: []float64{},
		Errors:        []string{},
		TileDetails:   make([]domain.TileDetail, 0, len(coords)),
		SampleURLs:    make([]string, 0, len(coords)),
	}

	for _, c := range coords {
		u := p.URLs.CoordURL(ep, c)
		res.SampleURLs = append(res.SampleURLs, u)

		start := time.Now()
		resp, err := p.Fetcher.Fetch(ctx, u)
		elapsed := time.Since(start)

		detail, out, msg := classifyTile(c, u, resp, elapsed, err)
		switch out {
		case tileSuccess:
			res.SuccessfulTiles++
			res.ResponseTimes = append(res.ResponseTimes, elapsed.Seconds())
			if p.SlowThreshold > 0 && elapsed >= p.SlowThreshold {
				res.SlowTiles++
				detail.Note = fmt.Sprintf("Slow response: %.2fs", elapsed.Seconds())
			}
		case tileFailure:
			res.FailedTiles++
			res.Errors = append(res.Errors, msg)
		}
		res.TileDetails = append(res.TileDetails, detail)
	}

	res.Status = EndpointStatus(res.SuccessfulTiles, res.FailedTiles)
	if n := len(res.ResponseTimes); n > 0 {
		var sum float64
		for _, rt := range res.ResponseTimes {
			sum += rt
		}
		avg := sum / float64(n)
		res.AvgResponseTime = &avg
	}
	if p.CheckMetadata {
		res.Metadata = p.metadata(ctx, ep)
	}

	p.Logger.Debug("endpoint_probed",
		zap.String("endpoint", ep.Name),
		zap.String("relative_dir", ep.RelativeDir),
		zap.String("status", string(res.Status)),
		zap.Int("successful_tiles", res.SuccessfulTiles),
		zap.Int("failed_tiles", res.FailedTiles),
	)
	return res
}

func (p *Prober) metadata(ctx context.Context, ep domain.Endpoint) *domain.MetadataCheck {
	m := &domain.MetadataCheck{URL: p.URLs.MetadataURL(ep)}
	resp, err := p.Fetcher.Fetch(ctx, m.URL)
	if err != nil {
		m.Error = err.Error()
		return m
	}
	m.StatusCode = resp.StatusCode
	m.ContentType = resp.ContentType()
	if resp.StatusCode >= 500 {
		m.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return m
}
