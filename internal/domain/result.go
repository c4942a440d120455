package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusHealthy Status = "healthy"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// Problem reports whether the status should fail a run.
func (s Status) Problem() bool {
	return s == StatusFailed || s == StatusError
}

// Symbol is the console marker printed next to an endpoint.
func (s Status) Symbol() string {
	switch s {
	case StatusHealthy:
		return "✓"
	case StatusPartial:
		return "⚠"
	case StatusFailed:
		return "✗"
	default:
		return "?"
	}
}

// Coord addresses one tile in the pyramid.
type Coord struct {
	Z, X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("Z%dX%dY%d", c.Z, c.X, c.Y)
}

// SampleCoords are fetched for every endpoint unless overridden.
var SampleCoords = []Coord{{0, 0, 0}, {1, 0, 0}, {2, 1, 1}}

// TileDetail records one tile fetch.
type TileDetail struct {
	Coordinates   string  `json:"coordinates" yaml:"coordinates"`
	URL           string  `json:"url" yaml:"url"`
	StatusCode    int     `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ResponseTime  float64 `json:"response_time,omitempty" yaml:"response_time,omitempty"` // seconds
	ContentLength int     `json:"content_length,omitempty" yaml:"content_length,omitempty"`
	ContentType   string  `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	RedirectedTo  string  `json:"redirected_to,omitempty" yaml:"redirected_to,omitempty"`
	Error         string  `json:"error,omitempty" yaml:"error,omitempty"`
	Note          string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// MetadataCheck is the informational probe of an endpoint's metadata URL.
type MetadataCheck struct {
	URL         string `json:"url" yaml:"url"`
	StatusCode  int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProbeResult is the outcome of probing one endpoint.
type ProbeResult struct {
	Name            string         `json:"name" yaml:"name"`
	RelativeDir     string         `json:"relative_dir" yaml:"relative_dir"`
	Status          Status         `json:"status" yaml:"status"`
	SuccessfulTiles int            `json:"successful_tiles" yaml:"successful_tiles"`
	FailedTiles     int            `json:"failed_tiles" yaml:"failed_tiles"`
	SlowTiles       int            `json:"slow_tiles,omitempty" yaml:"slow_tiles,omitempty"`
	ResponseTimes   []float64      `json:"response_times" yaml:"response_times"`
	Errors          []string       `json:"errors" yaml:"errors"`
	TileDetails     []TileDetail   `json:"tile_details" yaml:"tile_details"`
	SampleURLs      []string       `json:"sample_urls" yaml:"sample_urls"`
	AvgResponseTime *float64       `json:"avg_response_time" yaml:"avg_response_time"`
	Metadata        *MetadataCheck `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AvgLatency returns the mean latency of successful fetches.
func (r ProbeResult) AvgLatency() (time.Duration, bool) {
	if r.AvgResponseTime == nil {
		return 0, false
	}
	return time.Duration(*r.AvgResponseTime * float64(time.Second)), true
}

// ErrorResult is used when probing an endpoint could not complete at all.
func ErrorResult(ep Endpoint, cause any) ProbeResult {
	return ProbeResult{
		Name:        ep.Name,
		RelativeDir: ep.RelativeDir,
		Status:      StatusError,
		Errors:      []string{fmt.Sprintf("Test execution failed: %v", cause)},
	}
}

// Key identifies the endpoint across runs.
func (r ProbeResult) Key() string {
	if r.RelativeDir == "" {
		return r.Name
	}
	return r.RelativeDir + "/" + r.Name
}
