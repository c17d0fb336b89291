// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/lltranslate/internal/buildinfo"
	"github.com/traylinx/lltranslate/internal/logging"
	"github.com/traylinx/lltranslate/internal/provider"
	"github.com/traylinx/lltranslate/internal/session"
	"github.com/traylinx/lltranslate/internal/translate"
)

type modelRequest struct {
	Model string `json:"model"`
}

// lifecycleFunc is Controller.StartSelected or Controller.StopSelected.
type lifecycleFunc func(ctx context.Context, state session.State) (session.State, error)

type translateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// isInputError reports whether err was caused by the request rather than the provider.
func isInputError(err error) bool {
	return errors.Is(err, session.ErrEmptyModel) ||
		errors.Is(err, session.ErrNoSelection) ||
		errors.Is(err, translate.ErrNoModel)
}

func statusFor(err error) int {
	if isInputError(err) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	if isInputError(err) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	logging.Entry(c).Warnf("provider call failed: %v", err)
	if provider.IsStatus(err, http.StatusUnauthorized) {
		logging.Entry(c).Warn("provider rejected the API key; check provider.api-key or TOGETHER_API_KEY")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider_error", "message": err.Error()})
}

func badJSON(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid JSON body: " + err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.Version})
}

// HTML page

func (s *Server) handleIndex(c *gin.Context) {
	s.renderPage(c, http.StatusOK, pageData{})
}

// renderPage fills in the session-derived parts of data and renders the page.
// Pending notices are shown once and then dropped.
func (s *Server) renderPage(c *gin.Context, status int, data pageData) {
	ctx := c.Request.Context()
	id := sessionID(c)
	notices := s.sessions.TakeNotices(id)
	state, _ := s.sessions.Get(id)

	checked, err := s.controller.CheckRunning(ctx, state)
	if err != nil {
		logging.Entry(c).Warnf("running check failed: %v", err)
		if data.Error == "" {
			data.Error = "Could not check running instances: " + err.Error()
		}
	}
	state = checked

	models, err := s.registry.ListModels(ctx)
	if err != nil {
		logging.Entry(c).Warnf("model list failed: %v", err)
		if data.Error == "" {
			data.Error = "Could not load models: " + err.Error()
		}
	}

	data.Models = models
	data.Selected = state.Selected
	data.Notices = notices
	data.Warning = state.Warning
	data.Version = buildinfo.Version

	s.sessions.Save(id, state)

	c.HTML(status, "index.html", data)
}

func (s *Server) handleUISelect(c *gin.Context) {
	id := sessionID(c)
	state, _ := s.sessions.Get(id)

	next, err := s.controller.Select(c.Request.Context(), state, c.PostForm("model"))
	if err != nil {
		s.renderPage(c, statusFor(err), pageData{Error: err.Error()})
		return
	}
	s.sessions.Save(id, next)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleUIStart(c *gin.Context) {
	s.uiLifecycle(c, s.controller.StartSelected)
}

func (s *Server) handleUIStop(c *gin.Context) {
	s.uiLifecycle(c, s.controller.StopSelected)
}

func (s *Server) uiLifecycle(c *gin.Context, action lifecycleFunc) {
	id := sessionID(c)
	state, _ := s.sessions.Get(id)

	next, err := action(c.Request.Context(), state)
	if err != nil {
		s.renderPage(c, statusFor(err), pageData{Error: err.Error()})
		return
	}
	s.sessions.Save(id, next)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleUITranslate(c *gin.Context) {
	state, _ := s.sessions.Get(sessionID(c))
	data := pageData{Text: c.PostForm("text"), Language: c.PostForm("language")}

	res, err := s.translator.Translate(c.Request.Context(), translate.Request{
		Model:    state.Selected,
		Text:     data.Text,
		Language: data.Language,
	})
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		data.Error = err.Error()
	} else {
		data.Output = res.Output
		data.Cached = res.Cached
	}
	s.renderPage(c, status, data)
}

// JSON API

func (s *Server) handleListModels(c *gin.Context) {
	models, err := s.registry.ListModels(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) handleListRunning(c *gin.Context) {
	ctx := c.Request.Context()
	running, err := s.registry.ListRunning(ctx)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	multiple, ids, err := s.registry.MultipleRunning(ctx)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": running, "multiple": multiple, "running_models": ids})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := sessionID(c)
	notices := s.sessions.TakeNotices(id)
	state, _ := s.sessions.Get(id)

	checked, err := s.controller.CheckRunning(c.Request.Context(), state)
	if err != nil {
		logging.Entry(c).Warnf("running check failed: %v", err)
	} else {
		state = checked
	}
	s.sessions.Save(id, state)

	state.Notices = notices
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleSelectModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	id := sessionID(c)
	state, _ := s.sessions.Get(id)
	next, err := s.controller.Select(c.Request.Context(), state, req.Model)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.sessions.Save(id, next)
	c.JSON(http.StatusOK, next)
}

func (s *Server) handleStartInstance(c *gin.Context) {
	s.apiLifecycle(c, s.controller.StartSelected)
}

func (s *Server) handleStopInstance(c *gin.Context) {
	s.apiLifecycle(c, s.controller.StopSelected)
}

// apiLifecycle starts or stops the model named in the body, or the selected
// model when the body names none. The selection itself is never changed.
func (s *Server) apiLifecycle(c *gin.Context, action lifecycleFunc) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badJSON(c, err)
		return
	}

	id := sessionID(c)
	state, _ := s.sessions.Get(id)
	target := state
	if req.Model != "" {
		target.Selected = req.Model
	}

	next, err := action(c.Request.Context(), target)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	state.Notices = next.Notices
	s.sessions.Save(id, state)
	c.JSON(http.StatusOK, gin.H{"model": target.Selected, "notices": next.Notices})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}

	state, _ := s.sessions.Get(sessionID(c))
	res, err := s.translator.Translate(c.Request.Context(), translate.Request{
		Model:    state.Selected,
		Text:     req.Text,
		Language: req.Language,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if res.Model == "" {
		res.Model = state.Selected
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"registry":    s.registry.Metrics(),
		"translation": s.translator.Metrics(),
		"sessions":    s.sessions.Len(),
	})
}

func (s *Server) handleCacheClear(c *gin.Context) {
	s.registry.Invalidate()
	s.translator.ClearCache()
	logging.Entry(c).Info("caches cleared")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "registry and translation caches cleared"})
}
