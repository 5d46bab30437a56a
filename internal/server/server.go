// Package server exposes the pipeline as a small JSON API: submit a
// conversion, poll its status, download the produced documents.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dygy/scorepress/internal/config"
	"github.com/dygy/scorepress/internal/logger"
)

// Config holds server configuration
type Config struct {
	Port       int
	ScriptsDir string
	App        config.Config
}

// Server is the HTTP server
type Server struct {
	config Config
	router *chi.Mux
	jobs   *JobManager
}

// New creates a new server
func New(cfg Config) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		jobs:   NewJobManager(cfg.App, cfg.ScriptsDir),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/convert", s.handleConvert)
	r.Get("/status/{id}", s.handleStatus)
	r.Get("/download/{id}/{file}", s.handleDownload)
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.L().Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.L().Error("shutdown error", "error", err)
		}
		close(done)
	}()

	logger.L().Info("server starting", "port", s.config.Port)
	fmt.Printf("scorepress API listening on http://localhost:%d\n", s.config.Port)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}
