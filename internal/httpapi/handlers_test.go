package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
	apimw "github.com/hamed0406/tileping/internal/httpapi/middleware"
	"github.com/hamed0406/tileping/internal/repo/memory"
)

// ---- test helpers ----

type fakeTrigger struct {
	queued bool
	calls  int
}

func (f *fakeTrigger) Trigger() bool {
	f.calls++
	if f.queued {
		return false
	}
	f.queued = true
	return true
}

type fixture struct {
	ts      *httptest.Server
	store   *memory.Store
	trigger *fakeTrigger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Tif", "Gebco")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	conf := "Size 256 256 3 5\nPageSize 512 512\nDataFile gebco.dat\nIndexFile gebco.idx\n"
	if err := os.WriteFile(filepath.Join(dir, "Gebco.webconf"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "foo.webconf"), []byte("Size 1 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := memory.New(0)
	trig := &fakeTrigger{}
	srv := NewServer(zap.NewNop(), store, trig, root)
	keys := apimw.Keys{Public: []string{"pub_test"}, Admin: []string{"adm_test"}}

	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, trigger: trig}
}

func (f *fixture) do(t *testing.T, method, path, key string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, f.ts.URL+path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func saveRun(t *testing.T, f *fixture, server string) domain.Run {
	t.Helper()
	run := domain.Run{
		ServerURL: server,
		Summary:   domain.Summary{TotalEndpoints: 1, Healthy: 1},
		Results:   []domain.ProbeResult{{Name: "Gebco", RelativeDir: "Tif/Gebco", Status: domain.StatusHealthy}},
	}
	if err := f.store.Save(context.Background(), &run); err != nil {
		t.Fatal(err)
	}
	return run
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestEndpoints_ListsWithIssues(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/api/endpoints", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/endpoints", "pub_test")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var eps []struct {
		Name        string   `json:"name"`
		RelativeDir string   `json:"relative_dir"`
		Width       *int     `json:"width"`
		Issues      []string `json:"issues"`
	}
	decode(t, resp, &eps)
	if len(eps) != 2 {
		t.Fatalf("expected 2 endpoints, got %+v", eps)
	}
	if eps[0].Name != "Gebco" || eps[0].Width == nil || *eps[0].Width != 256 || len(eps[0].Issues) != 0 {
		t.Fatalf("unexpected first endpoint %+v", eps[0])
	}
	if eps[1].Name != "foo" || eps[1].RelativeDir != "" || len(eps[1].Issues) == 0 {
		t.Fatalf("foo should be reported with issues: %+v", eps[1])
	}
}

func TestRuns_LatestListAndByID(t *testing.T) {
	f := setup(t)

	if resp := f.do(t, http.MethodGet, "/api/runs/latest", "pub_test"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 before any run, got %d", resp.StatusCode)
	}

	first := saveRun(t, f, "http://a")
	second := saveRun(t, f, "http://b")

	resp := f.do(t, http.MethodGet, "/api/runs/latest", "pub_test")
	var latest domain.Run
	decode(t, resp, &latest)
	if latest.ID != second.ID || len(latest.Results) != 1 {
		t.Fatalf("unexpected latest %+v", latest)
	}

	resp = f.do(t, http.MethodGet, "/api/runs?limit=10", "pub_test")
	var list []map[string]any
	decode(t, resp, &list)
	if len(list) != 2 || list[0]["server_url"] != "http://b" {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, ok := list[0]["endpoint_results"]; ok {
		t.Fatalf("list should not carry results")
	}

	resp = f.do(t, http.MethodGet, "/api/runs/1", "pub_test")
	var one domain.Run
	decode(t, resp, &one)
	if one.ID != first.ID || one.ServerURL != "http://a" {
		t.Fatalf("unexpected run %+v", one)
	}

	if resp := f.do(t, http.MethodGet, "/api/runs/99", "pub_test"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 for unknown run, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/runs/abc", "pub_test"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for bad id, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/runs?limit=0", "pub_test"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestTriggerRun(t *testing.T) {
	f := setup(t)

	if resp := f.do(t, http.MethodPost, "/api/runs", "pub_test"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key must not trigger runs, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/runs", "adm_test"); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/runs", "adm_test"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 while queued, got %d", resp.StatusCode)
	}
	if f.trigger.calls != 2 {
		t.Fatalf("expected 2 trigger calls, got %d", f.trigger.calls)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := NewServer(zap.NewNop(), memory.New(0), &fakeTrigger{}, t.TempDir())
	rec := httptest.NewRecorder()
	srv.Router(apimw.Keys{}, 1, 1).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("without a handler /metrics = %d, want 404", rec.Code)
	}

	srv.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tileping_runs_total 0\n"))
	})
	rec = httptest.NewRecorder()
	srv.Router(apimw.Keys{}, 1, 1).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "tileping_runs_total 0\n" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
