// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd assembles the lltranslate service from its parts and runs it
// until the process is signalled.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/traylinx/lltranslate/internal/api"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/events"
	"github.com/traylinx/lltranslate/internal/provider"
	"github.com/traylinx/lltranslate/internal/registry"
	"github.com/traylinx/lltranslate/internal/session"
	"github.com/traylinx/lltranslate/internal/translate"
	"github.com/traylinx/lltranslate/internal/util"
)

const (
	eventQueueSize       = 256
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = time.Minute
)

// Service owns every long-lived component.
type Service struct {
	configPath string

	bus        *events.Bus
	registry   *registry.Registry
	sessions   *session.Store
	translator *translate.Translator
	server     *api.Server
	watcher    *config.Watcher

	// openBrowser is replaced in tests.
	openBrowser func(url string) error
}

// sweepSessions drops idle sessions every interval until ctx is done.
func (s *Service) sweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.PurgeExpired(); removed > 0 {
				log.Debugf("session sweeper dropped %d idle session(s)", removed)
			}
		}
	}
}

// NewService builds the object graph for cfg. configPath may be empty, in
// which case hot reload is disabled.
func NewService(cfg *config.Config, configPath string) (*Service, error) {
	bus := events.NewBus(eventQueueSize)
	events.AttachAuditLog(bus, log.StandardLogger())
	publisher := events.Async(bus)

	client := provider.NewClient(cfg.Provider)
	reg, err := registry.New(client, registry.Options{
		ModelsTTL:  cfg.ModelsTTL(),
		RunningTTL: cfg.RunningTTL(),
		Filter:     cfg.Registry.ModelFilter,
		Events:     publisher,
	})
	if err != nil {
		bus.Shutdown()
		return nil, err
	}

	sessions := session.NewStore(cfg.Session.MaxSessions, cfg.SessionIdleTTL(), cfg.Inference.DefaultModel)
	translator := translate.New(client, translate.Options{
		Params:    inferenceParams(cfg),
		CacheSize: cfg.TranslationCache.MaxEntries,
		CacheTTL:  cfg.TranslationTTL(),
		Events:    publisher,
	})

	server := api.NewServer(cfg, api.Dependencies{
		Registry:   reg,
		Controller: session.NewController(reg, publisher),
		Sessions:   sessions,
		Translator: translator,
	})

	if cfg.Provider.APIKey == "" {
		log.Warn("no provider API key configured; set provider.api-key or TOGETHER_API_KEY")
	}
	log.Infof("provider %s (key %s), default model %q", client.BaseURL(), util.HideAPIKey(cfg.Provider.APIKey), cfg.Inference.DefaultModel)

	return &Service{
		configPath:  configPath,
		bus:         bus,
		registry:    reg,
		sessions:    sessions,
		translator:  translator,
		server:      server,
		openBrowser: open.Run,
	}, nil
}

// ApplyConfig re-applies the settings that can change without a restart:
// log level, inference parameters, cache lifetimes, the model filter and the
// default model of new sessions. Listener and provider settings need a restart.
func (s *Service) ApplyConfig(cfg *config.Config) {
	util.SetLogLevel(cfg)
	s.translator.UpdateParams(inferenceParams(cfg))
	s.translator.SetCacheTTL(cfg.TranslationTTL())
	s.registry.SetTTLs(cfg.ModelsTTL(), cfg.RunningTTL())
	if err := s.registry.SetFilter(cfg.Registry.ModelFilter); err != nil {
		log.Errorf("keeping previous model filter: %v", err)
	}
	s.sessions.SetDefaultModel(cfg.Inference.DefaultModel)
	s.sessions.SetIdleTTL(cfg.SessionIdleTTL())
	s.server.UpdateConfig(cfg)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context, cfg *config.Config) error {
	if s.configPath != "" {
		s.watcher = config.NewWatcher(s.configPath, s.ApplyConfig)
		if err := s.watcher.Start(); err != nil {
			log.Warnf("config hot reload disabled: %v", err)
			s.watcher = nil
		}
	}
	defer s.close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweepSessions(sweepCtx, sessionSweepInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Start() }()

	if cfg.OpenBrowser {
		url := uiURL(cfg)
		if err := s.openBrowser(url); err != nil {
			log.Warnf("could not open browser at %s: %v", url, err)
		}
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}

func (s *Service) close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.bus.Shutdown()
}

// StartService builds the service and runs it until SIGINT or SIGTERM.
func StartService(cfg *config.Config, configPath string) {
	service, err := NewService(cfg, configPath)
	if err != nil {
		log.Errorf("failed to build service: %v", err)
		return
	}

	ctxSignal, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = service.Run(ctxSignal, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("service exited with error: %v", err)
	}
}

func inferenceParams(cfg *config.Config) translate.Params {
	return translate.Params{
		Temperature: cfg.Inference.Temperature,
		MaxTokens:   cfg.Inference.MaxTokens,
		Stop:        cfg.Inference.Stop,
	}
}

func uiURL(cfg *config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, cfg.Port)
}
