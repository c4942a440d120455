// Package httpapi serves the status API used in serve mode.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	apimw "github.com/hamed0406/tileping/internal/httpapi/middleware"
	"github.com/hamed0406/tileping/internal/repo"
	"github.com/hamed0406/tileping/internal/webconf"
)

// Trigger queues an extra ping run. It reports false if one is already queued.
type Trigger interface {
	Trigger() bool
}

type Server struct {
	Logger      *zap.Logger
	Runs        repo.RunStore
	Runner      Trigger
	WebconfRoot string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

func NewServer(l *zap.Logger, runs repo.RunStore, runner Trigger, webconfRoot string) *Server {
	return &Server{Logger: l, Runs: runs, Runner: runner, WebconfRoot: webconfRoot}
}

// Router builds the HTTP routes. triggerRPM and triggerBurst limit POST /api/runs.
func (s *Server) Router(keys apimw.Keys, triggerRPM, triggerBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Get("/endpoints", s.handleEndpoints)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/latest", s.handleLatestRun)
			r.Get("/runs/{id}", s.handleGetRun)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Use(apimw.RateLimit(triggerRPM, triggerBurst))
			r.Post("/runs", s.handleTriggerRun)
		})
	})

	return r
}

type endpointView struct {
	domain.Endpoint
	Issues []string `json:"issues"`
}

func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	eps := webconf.Discover(s.WebconfRoot, s.Logger)
	out := make([]endpointView, 0, len(eps))
	for _, ep := range eps {
		issues := webconf.Validate(ep)
		if issues == nil {
			issues = []string{}
		}
		out = append(out, endpointView{Endpoint: ep, Issues: issues})
	}
	writeJSON(w, http.StatusOK, out)
}

// runView is a run without its per-endpoint results.
type runView struct {
	ID         int64          `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	ServerURL  string         `json:"server_url"`
	Summary    domain.Summary `json:"summary"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.Runs.List(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("api_list_runs_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, runView{
			ID:         run.ID,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			ServerURL:  run.ServerURL,
			Summary:    run.Summary,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Runs.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_latest_run_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no runs yet")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad run id")
		return
	}
	run, err := s.Runs.ByID(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.Logger.Warn("api_get_run_error", zap.Int64("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get error")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if !s.Runner.Trigger() {
		writeError(w, http.StatusConflict, "a run is already queued")
		return
	}
	s.Logger.Info("api_run_triggered", zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
