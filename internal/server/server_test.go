package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heraldhq/herald/internal/agent"
	"github.com/heraldhq/herald/internal/scheduler"
	"github.com/heraldhq/herald/internal/state"
	"github.com/heraldhq/herald/internal/store"
	"github.com/heraldhq/herald/internal/telemetry"
)

type stubRunner struct{}

func (stubRunner) Run(context.Context, agent.JobKind) (agent.Outcome, error) {
	return agent.OutcomeSkipped, nil
}

func testRepo(t *testing.T) *state.Repository {
	t.Helper()
	repo := state.NewRepository(store.NewMemory())
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func testSched(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(stubRunner{}, nil, scheduler.Options{})
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	return s
}

func TestHealthz(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestMetricsServed(t *testing.T) {
	e := routes(testRepo(t), testSched(t), telemetry.New(), "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatal("metrics output missing runtime collectors")
	}
}

func TestListJobs(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var jobs []scheduler.JobStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != len(agent.Kinds()) {
		t.Fatalf("listed %d jobs, want %d", len(jobs), len(agent.Kinds()))
	}
	if jobs[0].Kind != agent.JobMorningDigest {
		t.Fatalf("jobs[0] = %s", jobs[0].Kind)
	}
}

func TestTriggerAccepted(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/morning_digest/trigger", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp TriggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted || resp.Message == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestTriggerUnknownKind(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/coffee_break/trigger", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp HTTPError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Error, "coffee_break") {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestAPIAuth(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "sekrit")

	// Missing credential.
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 400 or 401", rec.Code)
	}

	// Wrong credential.
	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rec.Code)
	}

	// Correct credential.
	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correct token status = %d, want 200", rec.Code)
	}

	// Health and metrics stay open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func TestErrorHandlerShape(t *testing.T) {
	e := routes(testRepo(t), testSched(t), nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/state/unicorns", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp HTTPError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not the documented shape: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("error message empty")
	}
}
