// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

// Model is one entry of the provider's model catalogue. Only Name is required;
// the remaining fields are informational and feed the registry filter.
type Model struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name,omitempty"`
	DisplayType   string `json:"display_type,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
	Owner         string `json:"creator_organization,omitempty"`
}

// CompletionRequest is a single-prompt inference call.
type CompletionRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Stop        []string
}
