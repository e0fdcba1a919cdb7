package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/scout/internal/repository"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/store"
)

type stubRunStore struct {
	mu      sync.Mutex
	saved   []store.Run
	runs    map[string]store.Run
	saveErr error
	listErr error
}

func (s *stubRunStore) SaveRun(ctx context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, run)
	return s.saveErr
}

func (s *stubRunStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	if run, ok := s.runs[id]; ok {
		return run, nil
	}
	return store.Run{}, store.ErrNotFound
}

func (s *stubRunStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []store.Run
	for _, r := range s.runs {
		out = append(out, r)
	}
	return out, nil
}

type stubRunner struct {
	mu     sync.Mutex
	reqs   []research.Request
	result research.Result
	done   chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, req research.Request) research.Result {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
	return r.result
}

type stubProgress struct {
	p   research.Progress
	err error
}

func (s *stubProgress) Get(ctx context.Context, runID string) (research.Progress, error) {
	if s.err != nil {
		return research.Progress{}, s.err
	}
	return s.p, nil
}

func newTestHandler(st *stubRunStore, runner *stubRunner) *RunsHandler {
	logger := log.New(log.Writer(), "[RUNS] ", log.LstdFlags)
	exec := &RunExecutor{Orch: runner, Store: st, Logger: logger}
	return &RunsHandler{Exec: exec, Store: st, Logger: logger}
}

func TestCreateRunAcceptsAndExecutes(t *testing.T) {
	st := &stubRunStore{runs: map[string]store.Run{}}
	runner := &stubRunner{
		result: research.Result{Outcome: research.OutcomeCompleted, Report: "report"},
		done:   make(chan struct{}),
	}
	handler := newTestHandler(st, runner)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"topic":"solar panels","plan_name":"solar"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	var resp CreateRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("expected a run id")
	}

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("workflow was never executed")
	}
	runner.mu.Lock()
	got := runner.reqs[0]
	runner.mu.Unlock()
	if got.Topic != "solar panels" || got.PlanName != "solar" || got.RunID != resp.RunID {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestCreateRunRejectsMissingFields(t *testing.T) {
	handler := newTestHandler(&stubRunStore{runs: map[string]store.Run{}}, &stubRunner{})

	e := echo.New()
	for _, payload := range []string{`{"plan_name":"p"}`, `{"topic":"t"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		err := handler.create(ctx)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400 got %v", payload, err)
		}
	}
}

func TestGetRunFromArchive(t *testing.T) {
	st := &stubRunStore{runs: map[string]store.Run{
		"run-1": {ID: "run-1", Topic: "t", PlanName: "p", Outcome: "completed", Report: "done"},
	}}
	handler := newTestHandler(st, &stubRunner{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-1")

	if err := handler.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	var run store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.Outcome != "completed" || run.Report != "done" {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestGetRunFallsBackToProgress(t *testing.T) {
	handler := newTestHandler(&stubRunStore{runs: map[string]store.Run{}}, &stubRunner{})
	handler.Progress = &stubProgress{p: research.Progress{RunID: "run-2", Phase: "answering"}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-2", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-2")

	if err := handler.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	var p research.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Phase != "answering" {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestGetRunNotFound(t *testing.T) {
	handler := newTestHandler(&stubRunStore{runs: map[string]store.Run{}}, &stubRunner{})
	handler.Progress = &stubProgress{err: repository.ErrNotFound}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("nope")

	err := handler.get(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %v", err)
	}
}

func TestExecuteArchivesOutcome(t *testing.T) {
	st := &stubRunStore{runs: map[string]store.Run{}}
	runner := &stubRunner{result: research.Result{Outcome: research.OutcomeFailed, Err: errors.New("boom")}}
	exec := &RunExecutor{Orch: runner, Store: st, Logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags)}

	exec.Execute(context.Background(), research.Request{RunID: "run-3", Topic: "t", PlanName: "p"})

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.saved) != 1 {
		t.Fatalf("expected one archived run, got %d", len(st.saved))
	}
	got := st.saved[0]
	if got.Outcome != "failed" || got.Error != "boom" || got.ID != "run-3" {
		t.Fatalf("unexpected archived run: %+v", got)
	}
}
