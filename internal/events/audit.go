// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package events

import (
	log "github.com/sirupsen/logrus"
)

// AllEvents lists every event type the application emits.
var AllEvents = []Event{
	EventModelStarted,
	EventModelStopped,
	EventModelSelected,
	EventSwitchFailed,
	EventMultipleRunning,
	EventTranslationServed,
	EventProviderError,
}

// AttachAuditLog subscribes a logrus writer to every event on bus.
// Failures are logged at warn level, everything else at info.
func AttachAuditLog(bus *Bus, logger *log.Logger) []*Subscription {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return bus.SubscribeAll(func(ctx *Context) {
		entry := logger.WithField("event", string(ctx.Event))
		if ctx.Model != "" {
			entry = entry.WithField("model", ctx.Model)
		}
		if ctx.SessionID != "" {
			entry = entry.WithField("session", shortID(ctx.SessionID))
		}
		for k, v := range ctx.Data {
			entry = entry.WithField(k, v)
		}
		if ctx.ErrorMessage != "" {
			entry.WithField("error", ctx.ErrorMessage).Warn("audit")
			return
		}
		entry.Info("audit")
	}, AllEvents...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
