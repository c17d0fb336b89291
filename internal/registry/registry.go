// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry answers which models exist and which are running on the
// hosting provider, and starts or stops model instances. List results are
// cached briefly and invalidated whenever an instance is started or stopped.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/lltranslate/internal/cache"
	"github.com/traylinx/lltranslate/internal/events"
	"github.com/traylinx/lltranslate/internal/provider"
)

const (
	modelsKey  = "models"
	runningKey = "running"
)

// Provider is the subset of the hosting API the registry depends on.
type Provider interface {
	ListModels(ctx context.Context) ([]provider.Model, error)
	ListInstances(ctx context.Context) (map[string]bool, error)
	StartInstance(ctx context.Context, model string) error
	StopInstance(ctx context.Context, model string) error
}

// Options tunes caching and filtering.
type Options struct {
	// ModelsTTL is how long the model list is reused. Zero disables caching.
	ModelsTTL time.Duration
	// RunningTTL is how long the running-instance map is reused. Zero disables caching.
	RunningTTL time.Duration
	// Filter is an optional boolean expression over model metadata.
	Filter string
	// Events receives start/stop/provider error notifications.
	Events events.Publisher
}

// Registry is safe for concurrent use.
type Registry struct {
	provider Provider
	events   events.Publisher
	cache    *cache.Cache[string, any]

	mu         sync.RWMutex
	modelsTTL  time.Duration
	runningTTL time.Duration
	filter     string
	program    *vm.Program
}

// New creates a registry backed by p. It fails when opts.Filter does not compile.
func New(p Provider, opts Options) (*Registry, error) {
	r := &Registry{
		provider: p,
		events:   opts.Events,
		cache:    cache.New[string, any](8, 0),
	}
	if r.events == nil {
		r.events = events.Discard
	}
	r.SetTTLs(opts.ModelsTTL, opts.RunningTTL)
	if err := r.SetFilter(opts.Filter); err != nil {
		return nil, err
	}
	return r, nil
}

// SetTTLs changes cache lifetimes. Cached results are dropped so the new
// lifetimes apply immediately.
func (r *Registry) SetTTLs(models, running time.Duration) {
	r.mu.Lock()
	r.modelsTTL = max(models, 0)
	r.runningTTL = max(running, 0)
	r.mu.Unlock()
	r.Invalidate()
}

// SetFilter compiles and installs a model filter. An empty filter keeps every model.
func (r *Registry) SetFilter(filter string) error {
	filter = strings.TrimSpace(filter)
	var program *vm.Program
	if filter != "" {
		var err error
		program, err = expr.Compile(filter, expr.Env(filterEnv(provider.Model{})), expr.AsBool())
		if err != nil {
			return fmt.Errorf("registry: compile model filter %q: %w", filter, err)
		}
	}

	r.mu.Lock()
	changed := r.filter != filter
	r.filter = filter
	r.program = program
	r.mu.Unlock()

	if changed {
		r.cache.Delete(modelsKey)
	}
	return nil
}

// ListModels returns every model identifier the provider knows, in provider
// order, after applying the configured filter.
func (r *Registry) ListModels(ctx context.Context) ([]string, error) {
	if cached, ok := r.cache.Get(modelsKey); ok {
		return append([]string(nil), cached.([]string)...), nil
	}

	models, err := r.provider.ListModels(ctx)
	if err != nil {
		r.publishError("list_models", "", err)
		return nil, fmt.Errorf("registry: list models: %w", err)
	}

	r.mu.RLock()
	program, ttl := r.program, r.modelsTTL
	r.mu.RUnlock()

	ids := make([]string, 0, len(models))
	for _, m := range models {
		if program != nil && !matches(program, m) {
			continue
		}
		ids = append(ids, m.Name)
	}

	if ttl > 0 {
		r.cache.SetWithTTL(modelsKey, ids, ttl)
	}
	return append([]string(nil), ids...), nil
}

// ListRunning returns the provider's instance map. The returned map is a copy
// and may be up to the running TTL old.
func (r *Registry) ListRunning(ctx context.Context) (map[string]bool, error) {
	if cached, ok := r.cache.Get(runningKey); ok {
		return copyMap(cached.(map[string]bool)), nil
	}
	return r.fetchRunning(ctx)
}

// IsRunning reports whether id is present in the instance map with a true flag.
// The provider is always asked, since callers act on the answer.
func (r *Registry) IsRunning(ctx context.Context, id string) (bool, error) {
	running, err := r.fetchRunning(ctx)
	if err != nil {
		return false, err
	}
	return running[id], nil
}

// fetchRunning reads the instance map from the provider and refreshes the cache.
func (r *Registry) fetchRunning(ctx context.Context) (map[string]bool, error) {
	running, err := r.provider.ListInstances(ctx)
	if err != nil {
		r.publishError("list_instances", "", err)
		return nil, fmt.Errorf("registry: list running: %w", err)
	}
	if running == nil {
		running = map[string]bool{}
	}

	r.mu.RLock()
	ttl := r.runningTTL
	r.mu.RUnlock()
	if ttl > 0 {
		r.cache.SetWithTTL(runningKey, copyMap(running), ttl)
	}
	return copyMap(running), nil
}

// Start requests an instance of id. The provider may still be provisioning
// when Start returns.
func (r *Registry) Start(ctx context.Context, id string) error {
	err := r.provider.StartInstance(ctx, id)
	r.Invalidate()
	if err != nil {
		r.publishError("start", id, err)
		return fmt.Errorf("registry: start %s: %w", id, err)
	}
	log.WithField("model", id).Info("model instance start requested")
	r.events.Publish(events.New(events.EventModelStarted, id))
	return nil
}

// Stop requests that the instance of id be shut down.
func (r *Registry) Stop(ctx context.Context, id string) error {
	err := r.provider.StopInstance(ctx, id)
	r.Invalidate()
	if err != nil {
		r.publishError("stop", id, err)
		return fmt.Errorf("registry: stop %s: %w", id, err)
	}
	log.WithField("model", id).Info("model instance stop requested")
	r.events.Publish(events.New(events.EventModelStopped, id))
	return nil
}

// MultipleRunning reports whether more than one instance is running, along
// with the sorted identifiers of every running instance.
func (r *Registry) MultipleRunning(ctx context.Context) (bool, []string, error) {
	running, err := r.ListRunning(ctx)
	if err != nil {
		return false, nil, err
	}

	ids := make([]string, 0, len(running))
	for id, up := range running {
		if up {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return len(ids) > 1, ids, nil
}

// Invalidate drops every cached list result.
func (r *Registry) Invalidate() {
	r.cache.Clear()
}

// Metrics returns the list cache counters.
func (r *Registry) Metrics() cache.Metrics {
	return r.cache.Metrics()
}

func (r *Registry) publishError(op, model string, err error) {
	r.events.Publish(events.New(events.EventProviderError, model).WithData("op", op).WithError(err))
}

func filterEnv(m provider.Model) map[string]interface{} {
	return map[string]interface{}{
		"name":           m.Name,
		"display_name":   m.DisplayName,
		"display_type":   m.DisplayType,
		"context_length": m.ContextLength,
		"owner":          m.Owner,
	}
}

func matches(program *vm.Program, m provider.Model) bool {
	out, err := expr.Run(program, filterEnv(m))
	if err != nil {
		log.WithField("model", m.Name).Debugf("model filter failed: %v", err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func copyMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
