package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/job"
)

type fakeSource struct {
	jobs          []job.Info
	pingErr       error
	checkpointErr error
	checkpoints   int64
}

func (f *fakeSource) Summary() Summary {
	counts := map[job.Status]int{}
	for _, j := range f.jobs {
		counts[j.Status]++
	}
	return Summary{Engine: "sqlite", Parallelism: 2, Jobs: counts}
}

func (f *fakeSource) Jobs() []job.Info { return f.jobs }

func (f *fakeSource) Job(id string) (job.Info, bool) {
	for _, j := range f.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return job.Info{}, false
}

func (f *fakeSource) Ping(context.Context) error { return f.pingErr }

func (f *fakeSource) Checkpoint(context.Context) (checkpoint.Snapshot, error) {
	if f.checkpointErr != nil {
		return checkpoint.Snapshot{}, f.checkpointErr
	}
	f.checkpoints++
	return checkpoint.Snapshot{Sequence: f.checkpoints, Taken: time.Now(), Jobs: f.jobs}, nil
}

func newSource() *fakeSource {
	now := time.Now()
	return &fakeSource{jobs: []job.Info{
		{ID: "j1", Statement: "CREATE TABLE t (a INT)", Kind: job.KindDDL, Status: job.StatusFinished, SubmittedAt: now},
		{ID: "j2", Statement: "INSERT INTO t VALUES (1)", Kind: job.KindDML, Status: job.StatusRunning, SubmittedAt: now, Async: true},
		{ID: "j3", Statement: "SELECT * FROM nope", Kind: job.KindQuery, Status: job.StatusFailed, SubmittedAt: now, Error: "no such table"},
	}}
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestRoutes(t *testing.T) {
	src := newSource()
	h := New(src, "").Handler()

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody []string
	}{
		{name: "summary", path: "/", wantCode: 200, wantBody: []string{`"engine":"sqlite"`, `"parallelism":2`, `"failed":1`}},
		{name: "health", path: "/health", wantCode: 200, wantBody: []string{`"status":"ok"`}},
		{name: "all jobs", path: "/jobs", wantCode: 200, wantBody: []string{"j1", "j2", "j3"}},
		{name: "job by id", path: "/jobs/j3", wantCode: 200, wantBody: []string{`"error":"no such table"`, `"kind":"query"`}},
		{name: "unknown job", path: "/jobs/zzz", wantCode: 404, wantBody: []string{"job not found"}},
		{name: "metrics", path: "/metrics", wantCode: 200, wantBody: []string{"sqlaunch_console_requests_total"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, h, tt.path)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", code, tt.wantCode, body)
			}
			for _, w := range tt.wantBody {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q: %s", w, body)
				}
			}
		})
	}
}

func TestJobsStatusFilter(t *testing.T) {
	h := New(newSource(), "").Handler()
	_, body := get(t, h, "/jobs?status=running")

	var got struct {
		Jobs []job.Info `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].ID != "j2" {
		t.Errorf("filtered jobs = %+v", got.Jobs)
	}
}

func TestHealthDegraded(t *testing.T) {
	src := newSource()
	src.pingErr = errors.New("database is closed")
	code, body := get(t, New(src, "").Handler(), "/health")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if !strings.Contains(body, "database is closed") {
		t.Errorf("body = %s", body)
	}
}

func TestCheckpointRoute(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"taken", nil, http.StatusCreated, `"sequence":1`},
		{"disabled", errors.New("checkpoints are disabled"), http.StatusServiceUnavailable, "disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newSource()
			src.checkpointErr = tt.err
			rec := httptest.NewRecorder()
			New(src, "").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkpoints", nil))
			if rec.Code != tt.wantCode || !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("POST /checkpoints = %d %s, want %d containing %s", rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := New(newSource(), "127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/jobs/j1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "CREATE TABLE") {
		t.Errorf("GET /jobs/j1 = %d %s", resp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}

	// A second server on the same address must fail to bind while the first runs.
	a := New(newSource(), "127.0.0.1:0")
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown(context.Background())
	if err := New(newSource(), a.Addr()).Start(); err == nil {
		t.Error("expected bind error on occupied address")
	}
}
