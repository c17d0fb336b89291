// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package translate turns a phrase and a target language into a single
// inference call against the selected model.
package translate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
	"github.com/traylinx/lltranslate/internal/cache"
	"github.com/traylinx/lltranslate/internal/events"
	"github.com/traylinx/lltranslate/internal/provider"
)

// ErrNoModel is returned when a translation is requested without a model.
var ErrNoModel = errors.New("translate: no model selected")

// Completer runs one prompt against a hosted model.
type Completer interface {
	Complete(ctx context.Context, req provider.CompletionRequest) (string, error)
}

// Params are the sampling parameters of every inference call.
type Params struct {
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Options configures a Translator.
type Options struct {
	Params
	CacheSize int
	CacheTTL  time.Duration
	Events    events.Publisher
}

// Request is one translation ask.
type Request struct {
	Model    string `json:"model"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Result is the model's answer. Skipped is set when the input was empty and
// nothing was sent.
type Result struct {
	Output       string `json:"output"`
	Model        string `json:"model,omitempty"`
	Cached       bool   `json:"cached"`
	Skipped      bool   `json:"skipped"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
}

type resultKey struct {
	model    string
	text     string
	language string
}

type cachedResult struct {
	output       string
	promptTokens int
}

// Translator is safe for concurrent use.
type Translator struct {
	completer Completer
	events    events.Publisher
	results   *cache.Cache[resultKey, cachedResult]

	mu     sync.RWMutex
	params Params

	codecOnce sync.Once
	codec     tokenizer.Codec
}

// New creates a translator.
func New(completer Completer, opts Options) *Translator {
	t := &Translator{
		completer: completer,
		events:    opts.Events,
		results:   cache.New[resultKey, cachedResult](opts.CacheSize, opts.CacheTTL),
		params:    opts.Params,
	}
	if t.events == nil {
		t.events = events.Discard
	}
	return t
}

// Translate renders the prompt for req and returns the model output unmodified.
// Empty text or language yields a skipped result without contacting the provider.
func (t *Translator) Translate(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	language := strings.TrimSpace(req.Language)
	if text == "" || language == "" {
		return Result{Skipped: true}, nil
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return Result{}, ErrNoModel
	}

	key := resultKey{model: model, text: text, language: language}
	if hit, ok := t.results.Get(key); ok {
		result := Result{Output: hit.output, Model: model, Cached: true, PromptTokens: hit.promptTokens}
		t.served(result, language)
		return result, nil
	}

	prompt, err := RenderPrompt(text, language)
	if err != nil {
		return Result{}, fmt.Errorf("translate: render prompt: %w", err)
	}
	result := Result{Model: model, PromptTokens: t.countTokens(prompt)}

	params := t.Params()
	output, err := t.completer.Complete(ctx, provider.CompletionRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stop:        params.Stop,
	})
	if err != nil {
		t.events.Publish(events.New(events.EventProviderError, model).WithData("op", "inference").WithError(err))
		return Result{}, fmt.Errorf("translate: %w", err)
	}

	t.results.Set(key, cachedResult{output: output, promptTokens: result.PromptTokens})
	result.Output = output
	t.served(result, language)
	return result, nil
}

// Params returns the current sampling parameters.
func (t *Translator) Params() Params {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := t.params
	p.Stop = slices.Clone(p.Stop)
	return p
}

// UpdateParams replaces the sampling parameters. Cached results are dropped
// when the parameters change.
func (t *Translator) UpdateParams(p Params) {
	t.mu.Lock()
	changed := p.Temperature != t.params.Temperature ||
		p.MaxTokens != t.params.MaxTokens ||
		!slices.Equal(p.Stop, t.params.Stop)
	t.params = Params{Temperature: p.Temperature, MaxTokens: p.MaxTokens, Stop: slices.Clone(p.Stop)}
	t.mu.Unlock()

	if changed {
		t.results.Clear()
		log.Debugf("translation parameters updated: temperature=%v max_tokens=%d", p.Temperature, p.MaxTokens)
	}
}

// SetCacheTTL changes how long results stored from now on are reused.
func (t *Translator) SetCacheTTL(ttl time.Duration) {
	t.results.SetTTL(ttl)
}

// ClearCache drops every cached result.
func (t *Translator) ClearCache() {
	t.results.Clear()
}

// Metrics returns the result cache counters.
func (t *Translator) Metrics() cache.Metrics {
	return t.results.Metrics()
}

func (t *Translator) served(r Result, language string) {
	t.events.Publish(events.New(events.EventTranslationServed, r.Model).
		WithData("cached", r.Cached).
		WithData("language", language).
		WithData("prompt_tokens", r.PromptTokens))
}

// countTokens estimates prompt size with the cl100k encoding. Failures are logged and reported as 0.
func (t *Translator) countTokens(prompt string) int {
	t.codecOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Debugf("token estimator unavailable: %v", err)
			return
		}
		t.codec = codec
	})
	if t.codec == nil {
		return 0
	}
	ids, _, err := t.codec.Encode(prompt)
	if err != nil {
		log.Debugf("token estimate failed: %v", err)
		return 0
	}
	return len(ids)
}
