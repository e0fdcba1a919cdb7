package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/scout/internal/repository"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/store"
)

// RunStore is the slice of the Postgres store the run handlers use.
type RunStore interface {
	SaveRun(ctx context.Context, run store.Run) error
	GetRun(ctx context.Context, id string) (store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

// Runner executes one research workflow to completion.
type Runner interface {
	Run(ctx context.Context, req research.Request) research.Result
}

// ProgressReader exposes live progress for in-flight runs.
type ProgressReader interface {
	Get(ctx context.Context, runID string) (research.Progress, error)
}

// RunExecutor runs a workflow and archives the outcome. Shared by the API
// handler and the scheduler.
type RunExecutor struct {
	Orch   Runner
	Store  RunStore
	Logger *log.Logger
}

// Execute runs the workflow synchronously and archives the result.
func (e *RunExecutor) Execute(ctx context.Context, req research.Request) research.Result {
	started := time.Now()
	res := e.Orch.Run(ctx, req)

	run := store.Run{
		ID:         req.RunID,
		Topic:      req.Topic,
		PlanName:   req.PlanName,
		Outcome:    string(res.Outcome),
		Report:     res.Report,
		CreatedAt:  started,
		FinishedAt: time.Now(),
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	if err := e.Store.SaveRun(ctx, run); err != nil {
		e.Logger.Printf("archiving run %s failed: %v", req.RunID, err)
	}
	return res
}

// RunsHandler serves the research run API.
type RunsHandler struct {
	Exec     *RunExecutor
	Store    RunStore
	Progress ProgressReader
	Logger   *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/runs", h.create)
	g.GET("/runs", h.list)
	g.GET("/runs/:id", h.get)
}

func (h *RunsHandler) create(c echo.Context) error {
	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic required")
	}
	if strings.TrimSpace(req.PlanName) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan_name required")
	}

	runID := uuid.New().String()
	go func() {
		// Detached from the request: the workflow outlives the HTTP call.
		h.Exec.Execute(context.Background(), research.Request{
			RunID:    runID,
			Topic:    req.Topic,
			PlanName: req.PlanName,
		})
	}()

	return c.JSON(http.StatusAccepted, CreateRunResponse{RunID: runID})
}

func (h *RunsHandler) list(c echo.Context) error {
	runs, err := h.Store.ListRuns(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	id := c.Param("id")
	run, err := h.Store.GetRun(c.Request().Context(), id)
	if err == nil {
		return c.JSON(http.StatusOK, run)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Not archived yet; maybe still in flight.
	if h.Progress != nil {
		p, perr := h.Progress.Get(c.Request().Context(), id)
		if perr == nil {
			return c.JSON(http.StatusOK, p)
		}
		if !errors.Is(perr, repository.ErrNotFound) {
			h.Logger.Printf("progress lookup for %s failed: %v", id, perr)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "run not found")
}
