package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/scout/config"
	"github.com/mohammad-safakhou/scout/internal/agents"
	"github.com/mohammad-safakhou/scout/internal/repository"
	"github.com/mohammad-safakhou/scout/internal/research"
	"github.com/mohammad-safakhou/scout/internal/store"
	"github.com/mohammad-safakhou/scout/internal/telemetry"
	"github.com/mohammad-safakhou/scout/internal/workspace"
)

// Run assembles the HTTP server: Postgres archive, Redis progress, the
// research orchestrator, auth and run routes, and the cron scheduler.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	// Redis is optional; without it run progress is only visible after archive.
	var progressRepo *repository.ProgressRepository
	if cfg.Storage.Redis.Host != "" {
		rc := cfg.Storage.Redis
		client, err := repository.Conn(ctx, rc.Host, rc.Port, rc.Password, rc.DB, rc.Timeout)
		if err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		progressRepo = repository.NewProgressRepository(client)
	}

	ws, err := workspace.New(cfg.Storage.File.DataDir)
	if err != nil {
		return err
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	var progress research.ProgressSink
	if progressRepo != nil {
		progress = progressRepo
	}
	deps, idx, err := agents.BuildDependencies(cfg, tele, &agents.AutoIntent{}, ws, progress)
	if err != nil {
		return err
	}
	defer idx.Close()
	orch, err := research.NewOrchestrator(cfg, tele, deps)
	if err != nil {
		return err
	}

	exec := &RunExecutor{
		Orch:   orch,
		Store:  st,
		Logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	protected := api.Group("")
	protected.Use(jwtMiddleware(auth.Secret))
	rh := &RunsHandler{Exec: exec, Store: st, Logger: exec.Logger}
	if progressRepo != nil {
		rh.Progress = progressRepo
	}
	rh.Register(protected)

	if len(cfg.Research.Schedules) > 0 {
		sched, err := NewScheduler(cfg.Research.Schedules, exec)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	return e.Start(cfg.Server.Address)
}
