// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buildinfo exposes compile-time metadata shared across the server.
package buildinfo

import "fmt"

// Overridden via ldflags during release builds.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String summarizes the build for startup logs and the -version flag.
func String() string {
	return fmt.Sprintf("lltranslate Version: %s, Commit: %s, BuiltAt: %s", Version, Commit, BuildDate)
}

// UserAgent is sent on every provider request.
func UserAgent() string {
	return "lltranslate/" + Version
}
