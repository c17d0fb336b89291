// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when an inference response carries no text.
var ErrEmptyCompletion = errors.New("provider: completion response has no text")

// StatusError reports a non-2xx answer from the provider.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider: %s returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("provider: %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
