package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/techbrief/config"
	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
	"github.com/mohammad-safakhou/techbrief/internal/store"
	"github.com/mohammad-safakhou/techbrief/repository"
	"github.com/mohammad-safakhou/techbrief/session"
)

// Comparer runs comparisons and reports their progress.
type Comparer interface {
	RunComparisonWithID(ctx context.Context, runID, query string) (core.ComparisonResult, error)
	Status(runID string) (core.ProcessingStatus, bool)
	InFlight() []core.ProcessingStatus
}

// HistoryStore is a decision store with full-text search.
type HistoryStore interface {
	store.DecisionStore
	Search(ctx context.Context, q string, limit int) ([]store.Decision, error)
}

// Options carries the collaborators mounted by New.
type Options struct {
	Comparer     Comparer
	History      HistoryStore
	Shares       session.Store
	Telemetry    *telemetry.Telemetry
	Budget       config.BudgetConfig
	AllowOrigins []string
	RecentLimit  int
	Logger       *zap.Logger
}

// New builds the echo instance with every route registered.
func New(o Options) *echo.Echo {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(o.AllowOrigins) == 0 {
		o.AllowOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		fields := []zap.Field{
			zap.Int("code", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("ip", c.RealIP()),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     o.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	registerDocs(e)

	api := e.Group("/api")
	api.GET("/catalog", catalog)
	if o.Comparer != nil {
		(&RunsHandler{Comparer: o.Comparer}).Register(api)
	}
	if o.History != nil {
		(&HistoryHandler{Store: o.History}).Register(api.Group("/history"))
	}
	if o.Shares != nil {
		(&ShareHandler{Store: o.Shares, RecentLimit: o.RecentLimit}).Register(api.Group("/share"))
	}
	NewOpsHandler(o.Comparer, o.Telemetry, o.Budget).Register(api.Group("/ops"))
	return e
}

// Run wires storage, the pipeline and the share store from cfg and serves
// until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	storeLog := logger.Named("store")

	backend, err := repository.Open(ctx, cfg.Storage, storeLog)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.Type == repository.RepoTypePostgres {
		if err := Migrate(cfg.Storage.Postgres, "up", 0); err != nil {
			storeLog.Warn("apply migrations", zap.Error(err))
		}
	}
	history, err := store.NewIndexedStore(ctx, backend.Store, storeLog)
	if err != nil {
		return err
	}
	defer history.Close()

	tele := telemetry.NewTelemetry(cfg.Telemetry, nil)
	pipeline, err := core.NewPipelineFromConfig(cfg, tele, logger, core.WithRecorder(store.Recorder{Store: history}))
	if err != nil {
		return err
	}
	shares, err := session.NewStore(session.InMemoryStore)
	if err != nil {
		return err
	}

	e := New(Options{
		Comparer:     pipeline,
		History:      history,
		Shares:       shares,
		Telemetry:    tele,
		Budget:       cfg.Budget,
		AllowOrigins: cfg.Server.AllowOrigins,
		RecentLimit:  cfg.Share.RecentLimit,
		Logger:       logger.Named("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Address), zap.String("storage", string(backend.Type)))
		errCh <- e.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
