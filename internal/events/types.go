// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package events distributes model lifecycle and translation notifications
// to in-process subscribers such as the audit logger.
package events

import (
	"time"
)

// Event identifies what happened.
type Event string

const (
	EventModelStarted      Event = "model_started"
	EventModelStopped      Event = "model_stopped"
	EventModelSelected     Event = "model_selected"
	EventSwitchFailed      Event = "switch_failed"
	EventMultipleRunning   Event = "multiple_running"
	EventTranslationServed Event = "translation_served"
	EventProviderError     Event = "provider_error"
)

// Context carries the payload of a single event.
type Context struct {
	Event        Event                  `json:"event"`
	Timestamp    time.Time              `json:"timestamp"`
	Model        string                 `json:"model,omitempty"`
	SessionID    string                 `json:"session_id,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Error        error                  `json:"-"`
	ErrorMessage string                 `json:"error,omitempty"`
}

// New builds an event context stamped with the current time.
func New(event Event, model string) *Context {
	return &Context{
		Event:     event,
		Timestamp: time.Now(),
		Model:     model,
	}
}

// WithData attaches a key/value to the event and returns it for chaining.
func (c *Context) WithData(key string, value interface{}) *Context {
	if c.Data == nil {
		c.Data = make(map[string]interface{})
	}
	c.Data[key] = value
	return c
}

// WithError records err on the event.
func (c *Context) WithError(err error) *Context {
	c.Error = err
	if err != nil {
		c.ErrorMessage = err.Error()
	}
	return c
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(ctx *Context)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(*Context) {}
