// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session holds per-browser state and the controller that turns
// model selection and start/stop requests into registry calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/lltranslate/internal/events"
)

var (
	// ErrEmptyModel is returned when a selection names no model.
	ErrEmptyModel = errors.New("session: model identifier is empty")
	// ErrNoSelection is returned when an operation needs a selected model and there is none.
	ErrNoSelection = errors.New("session: no model selected")
)

// Registry is the part of the model registry the controller drives.
type Registry interface {
	IsRunning(ctx context.Context, id string) (bool, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	MultipleRunning(ctx context.Context) (bool, []string, error)
}

// Controller applies user actions to a session State. It keeps no state of its own.
type Controller struct {
	registry Registry
	events   events.Publisher
}

// NewController creates a controller. A nil publisher discards events.
func NewController(registry Registry, publisher events.Publisher) *Controller {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Controller{registry: registry, events: publisher}
}

// Select switches the session to newID: the previous model is stopped when it
// is running, then newID is started. On failure the error is returned with the
// unchanged input state; a stop that already succeeded is not undone.
func (c *Controller) Select(ctx context.Context, state State, newID string) (State, error) {
	newID = strings.TrimSpace(newID)
	if newID == "" {
		return state, ErrEmptyModel
	}
	if newID == state.Selected {
		return state, nil
	}

	next := state.clone()
	if prev := state.Selected; prev != "" {
		running, err := c.registry.IsRunning(ctx, prev)
		if err != nil {
			return state, c.switchFailed(ctx, prev, newID, fmt.Errorf("check %s: %w", prev, err))
		}
		if running {
			if err := c.registry.Stop(ctx, prev); err != nil {
				return state, c.switchFailed(ctx, prev, newID, err)
			}
			next = next.withNotice(stoppedNotice(prev))
		}
	}

	if err := c.registry.Start(ctx, newID); err != nil {
		return state, c.switchFailed(ctx, state.Selected, newID, err)
	}
	next = next.withNotice(startedNotice(newID))
	next.Selected = newID

	c.publish(ctx, events.New(events.EventModelSelected, newID).WithData("previous", state.Selected))
	return next, nil
}

// StartSelected starts the selected model.
func (c *Controller) StartSelected(ctx context.Context, state State) (State, error) {
	if !state.HasSelection() {
		return state, ErrNoSelection
	}
	if err := c.registry.Start(ctx, state.Selected); err != nil {
		return state, err
	}
	return state.withNotice(startedNotice(state.Selected)), nil
}

// StopSelected stops the selected model. The selection is kept.
func (c *Controller) StopSelected(ctx context.Context, state State) (State, error) {
	if !state.HasSelection() {
		return state, ErrNoSelection
	}
	if err := c.registry.Stop(ctx, state.Selected); err != nil {
		return state, err
	}
	return state.withNotice(stoppedNotice(state.Selected)), nil
}

// CheckRunning refreshes the multiple-instances warning. Nothing is stopped.
func (c *Controller) CheckRunning(ctx context.Context, state State) (State, error) {
	multiple, running, err := c.registry.MultipleRunning(ctx)
	if err != nil {
		return state, err
	}

	next := state.clone()
	if !multiple {
		next.Warning = ""
		next.RunningModels = nil
		return next, nil
	}

	next.Warning = warningText(running)
	next.RunningModels = running
	if state.Warning != next.Warning {
		c.publish(ctx, events.New(events.EventMultipleRunning, state.Selected).WithData("running", running))
	}
	return next, nil
}

func (c *Controller) switchFailed(ctx context.Context, prev, newID string, err error) error {
	log.WithFields(log.Fields{"previous": prev, "model": newID}).Warnf("model switch failed: %v", err)
	c.publish(ctx, events.New(events.EventSwitchFailed, newID).WithData("previous", prev).WithError(err))
	return fmt.Errorf("session: switch to %s: %w", newID, err)
}

func (c *Controller) publish(ctx context.Context, e *events.Context) {
	e.SessionID = IDFromContext(ctx)
	c.events.Publish(e)
}
