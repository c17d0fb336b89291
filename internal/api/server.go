// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api serves the translation page and its JSON counterpart over gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/lltranslate/internal/cache"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/logging"
	"github.com/traylinx/lltranslate/internal/session"
	"github.com/traylinx/lltranslate/internal/translate"
)

// Registry lists models and instances for the page and the JSON API.
type Registry interface {
	ListModels(ctx context.Context) ([]string, error)
	ListRunning(ctx context.Context) (map[string]bool, error)
	MultipleRunning(ctx context.Context) (bool, []string, error)
	Invalidate()
	Metrics() cache.Metrics
}

// Translator answers translation requests.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (translate.Result, error)
	ClearCache()
	Metrics() cache.Metrics
}

// Dependencies are the collaborators a Server routes requests to.
type Dependencies struct {
	Registry   Registry
	Controller *session.Controller
	Sessions   *session.Store
	Translator Translator
}

// Server owns the gin engine and the HTTP listener.
type Server struct {
	engine *gin.Engine
	server *http.Server

	registry   Registry
	controller *session.Controller
	sessions   *session.Store
	translator Translator

	mu  sync.RWMutex
	cfg *config.Config
}

// NewServer builds the engine and registers every route.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if !cfg.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{
		engine:     engine,
		registry:   deps.Registry,
		controller: deps.Controller,
		sessions:   deps.Sessions,
		translator: deps.Translator,
		cfg:        cfg,
	}
	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.SetHTMLTemplate(indexTemplate)
	s.engine.GET("/healthz", s.handleHealth)

	withSession := s.engine.Group("/", s.sessionMiddleware())
	withSession.GET("/", s.handleIndex)

	ui := withSession.Group("/ui")
	ui.POST("/select", s.handleUISelect)
	ui.POST("/start", s.handleUIStart)
	ui.POST("/stop", s.handleUIStop)
	ui.POST("/translate", s.handleUITranslate)

	apiGroup := withSession.Group("/api")
	apiGroup.GET("/models", s.handleListModels)
	apiGroup.GET("/models/running", s.handleListRunning)
	apiGroup.GET("/session", s.handleGetSession)
	apiGroup.POST("/session/model", s.handleSelectModel)
	apiGroup.POST("/instances/start", s.handleStartInstance)
	apiGroup.POST("/instances/stop", s.handleStopInstance)
	apiGroup.POST("/translate", s.handleTranslate)
	apiGroup.GET("/cache/metrics", s.handleCacheMetrics)
	apiGroup.POST("/cache/clear", s.managementMiddleware(), s.handleCacheClear)
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until Stop is called. http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	log.Infof("lltranslate listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// UpdateConfig swaps the configuration used by request handlers.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}
