// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"strings"
)

// MultipleRunningWarning heads the warning shown when more than one instance is up.
const MultipleRunningWarning = "Hey boy, you have too many together instances running. Go shut some down!"

// State is everything a single browser session remembers between requests.
// An empty Selected means no model is selected.
type State struct {
	Selected      string   `json:"selected"`
	Notices       []string `json:"notices,omitempty"`
	Warning       string   `json:"warning,omitempty"`
	RunningModels []string `json:"running_models,omitempty"`
}

// HasSelection reports whether a model is selected.
func (s State) HasSelection() bool { return s.Selected != "" }

func (s State) clone() State {
	out := s
	out.Notices = append([]string(nil), s.Notices...)
	out.RunningModels = append([]string(nil), s.RunningModels...)
	return out
}

func (s State) withNotice(notice string) State {
	out := s.clone()
	out.Notices = append(out.Notices, notice)
	return out
}

func startedNotice(id string) string { return fmt.Sprintf("Started model: %s", id) }
func stoppedNotice(id string) string { return fmt.Sprintf("Stopped model: %s", id) }

func warningText(running []string) string {
	return MultipleRunningWarning + "\n\n" + strings.Join(running, ", ")
}

type sessionIDKey struct{}

// WithID tags ctx with a session ID so lifecycle events can name the session.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// IDFromContext returns the session ID stored by WithID.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
