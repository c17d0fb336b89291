// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/lltranslate/internal/logging"
	"github.com/traylinx/lltranslate/internal/session"
	"github.com/traylinx/lltranslate/internal/util"
)

const (
	sessionIDKey        = "session_id"
	managementKeyHeader = "X-Management-Key"
)

// sessionMiddleware attaches a session ID, issuing one when the request has
// none. The cookie is re-set on every request so its lifetime follows the
// server-side idle TTL.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.config()
		id, err := c.Cookie(cfg.Session.CookieName)
		if err != nil || !session.ValidID(id) {
			id = s.sessions.NewID()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.Session.CookieName, id, cfg.Session.IdleTTLSeconds, "/", "", false, true)

		c.Set(sessionIDKey, id)
		c.Request = c.Request.WithContext(session.WithID(c.Request.Context(), id))
		c.Next()
	}
}

// managementMiddleware guards maintenance endpoints. With a secret configured
// the caller must present it; without one only direct localhost calls pass.
func (s *Server) managementMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.config()
		if cfg.RemoteManagement.SecretKey == "" {
			if util.IsLocalhostDirect(c) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "management endpoints are restricted to localhost",
			})
			return
		}

		key := c.GetHeader(managementKeyHeader)
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if !cfg.CheckManagementKey(key) {
			logging.Entry(c).Warn("management request rejected: invalid key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid management key",
			})
			return
		}
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
