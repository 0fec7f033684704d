package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"churn-risk-alerts/internal/dashboard"
	"churn-risk-alerts/internal/service"
	"churn-risk-alerts/internal/storage"
)

// Runner triggers evaluation runs on demand.
type Runner interface {
	RunOnce(ctx context.Context) (service.RunSummary, error)
}

// Store is the persistence surface the API reads and writes.
type Store interface {
	GetAlertConfig(ctx context.Context) (storage.AlertConfiguration, error)
	SaveAlertConfig(ctx context.Context, cfg storage.AlertConfiguration) (storage.AlertConfiguration, error)
	ListAlerts(ctx context.Context, filter storage.AlertHistoryFilter) ([]storage.AlertHistoryRecord, int64, error)
}

// Server exposes the monitoring API over HTTP.
type Server struct {
	store      Store
	runner     Runner
	aggregator *dashboard.Aggregator
	logger     zerolog.Logger
	engine     *gin.Engine
}

// New wires handlers into a gin engine.
func New(store Store, runner Runner, aggregator *dashboard.Aggregator, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:      store,
		runner:     runner,
		aggregator: aggregator,
		logger:     logger.With().Str("component", "http").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", s.handleHealth)

	api := engine.Group("/api")
	{
		api.GET("/alerts/config", s.handleGetConfig)
		api.POST("/alerts/config", s.handleSaveConfig)
		api.GET("/alerts/history", s.handleAlertHistory)
		api.GET("/alerts/stats", s.handleAlertStats)
		api.GET("/dashboard", s.handleDashboard)
		api.POST("/monitor/run", s.handleTriggerRun)
	}

	s.engine = engine
	return s
}

// Handler returns the root http handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve runs the HTTP server until ctx is cancelled, then drains connections
// within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
