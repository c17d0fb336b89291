// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	prev := Version
	defer func() { Version = prev }()

	Version = "1.2.3"
	assert.Contains(t, String(), "Version: 1.2.3")
	assert.Equal(t, "lltranslate/1.2.3", UserAgent())
}
