// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
)

// proxyHeaders mark a request that passed through a reverse proxy.
var proxyHeaders = []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Real-IP", "Forwarded"}

// IsLocalhostDirect reports whether the request reached the server straight
// from a loopback address. Any proxy header disqualifies it.
func IsLocalhostDirect(c *gin.Context) bool {
	return c != nil && isDirectLoopback(c.Request)
}

func isDirectLoopback(r *http.Request) bool {
	if r == nil {
		return false
	}
	for _, h := range proxyHeaders {
		if r.Header.Get(h) != "" {
			return false
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Unmap().IsLoopback()
}
