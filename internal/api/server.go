// Package api exposes the REST interface for managing rules, inspecting
// execution history, and controlling the scheduler.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/scheduler"
	"github.com/Veraticus/autobank/internal/service"
)

// Server wires handlers for rules, executions, accounts, audit, and
// scheduler control into a gin router.
type Server struct {
	storage   service.Storage
	bank      bank.Client
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
	router    *gin.Engine
}

// NewServer builds a server with all routes registered.
func NewServer(storage service.Storage, bankClient bank.Client, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		storage:   storage,
		bank:      bankClient,
		scheduler: sched,
		logger:    logger,
		router:    router,
	}

	router.Use(s.requestLogger())
	s.registerRoutes()

	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("API server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		rules := api.Group("/rules")
		{
			rules.GET("", s.handleListRules)
			rules.POST("", s.handleCreateRule)
			rules.GET("/:id", s.handleGetRule)
			rules.PUT("/:id", s.handleUpdateRule)
			rules.DELETE("/:id", s.handleDeleteRule)
			rules.POST("/:id/enable", s.handleEnableRule)
			rules.POST("/:id/disable", s.handleDisableRule)
			rules.GET("/:id/executions", s.handleRuleExecutions)
		}

		api.GET("/executions", s.handleListExecutions)
		api.GET("/executions/:id", s.handleGetExecution)

		api.GET("/accounts", s.handleListAccounts)

		api.GET("/audit", s.handleQueryAudit)
		api.GET("/audit/:id", s.handleGetAuditEntry)

		system := api.Group("/system")
		{
			system.GET("/status", s.handleStatus)
			system.POST("/poll", s.handleTriggerPoll)
			system.POST("/scheduler/enable", s.handleEnableScheduler)
			system.POST("/scheduler/disable", s.handleDisableScheduler)
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
