// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package constant defines the hosted provider's endpoint paths and wire limits
// shared by the provider client and its tests.
package constant

const (
	// ModelsInfoPath lists every model the provider can host.
	ModelsInfoPath = "/models/info"

	// InstancesPath reports which models currently have a live instance.
	InstancesPath = "/instances"

	// StartInstancePath starts an instance; the model is passed as ?model=.
	StartInstancePath = "/instances/start"

	// StopInstancePath stops an instance; the model is passed as ?model=.
	StopInstancePath = "/instances/stop"

	// InferencePath runs a completion against a started model.
	InferencePath = "/inference"

	// ModelQueryParam names the query parameter carrying the model ID.
	ModelQueryParam = "model"

	// MaxResponseBody caps how much of a provider response is read (8MB).
	MaxResponseBody = 8 * 1024 * 1024

	// MaxErrorBodySnippet caps the response body kept on provider errors.
	MaxErrorBodySnippet = 512
)
