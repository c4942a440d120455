package domain

import "time"

type Summary struct {
	TotalEndpoints       int `json:"total_endpoints" yaml:"total_endpoints"`
	Healthy              int `json:"healthy" yaml:"healthy"`
	Partial              int `json:"partial" yaml:"partial"`
	Failed               int `json:"failed" yaml:"failed"`
	Error                int `json:"error" yaml:"error"`
	TotalSuccessfulTiles int `json:"total_successful_tiles" yaml:"total_successful_tiles"`
	TotalFailedTiles     int `json:"total_failed_tiles" yaml:"total_failed_tiles"`
}

// Problems counts endpoints that ended failed or error.
func (s Summary) Problems() int {
	return s.Failed + s.Error
}

// Run is one complete discover-and-ping pass. It doubles as the JSON report.
type Run struct {
	ID            int64         `json:"id,omitempty" yaml:"id,omitempty"`
	Timestamp     float64       `json:"timestamp" yaml:"timestamp"` // unix seconds
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time     `json:"finished_at" yaml:"finished_at"`
	BaseServerURL string        `json:"base_server_url" yaml:"base_server_url"`
	ServerURL     string        `json:"server_url" yaml:"server_url"`
	WebconfRoot   string        `json:"webconf_root" yaml:"webconf_root"`
	Summary       Summary       `json:"summary" yaml:"summary"`
	Results       []ProbeResult `json:"endpoint_results" yaml:"endpoint_results"`
}

// Detected reports whether auto-detection moved the base URL.
func (r Run) Detected() bool {
	return r.ServerURL != "" && r.ServerURL != r.BaseServerURL
}
