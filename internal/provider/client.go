// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider is a thin HTTP client for a Together-compatible model
// hosting API: the model catalogue, instance lifecycle and inference.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/traylinx/lltranslate/internal/buildinfo"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/constant"
	"github.com/traylinx/lltranslate/internal/util"
)

// completionTextPaths are tried in order to locate the generated text.
var completionTextPaths = []string{"output.choices.0.text", "choices.0.text", "output"}

// Client talks to the hosting API. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	headers map[string]string
	client  *http.Client
}

// NewClient builds a client from the provider section of the config.
func NewClient(cfg config.ProviderConfig) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultProviderBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		headers: config.NormalizeHeaders(cfg.Headers),
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ListModels returns the provider's model catalogue. Entries without a name are dropped.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	data, err := c.do(ctx, "list models", http.MethodGet, constant.ModelsInfoPath, nil, nil)
	if err != nil {
		return nil, err
	}

	var raw []Model
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("provider: decode model list: %w", err)
	}

	models := make([]Model, 0, len(raw))
	for _, m := range raw {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		models = append(models, m)
	}
	return models, nil
}

// ListInstances returns the provider's instance map: model ID to running flag.
func (c *Client) ListInstances(ctx context.Context) (map[string]bool, error) {
	data, err := c.do(ctx, "list instances", http.MethodGet, constant.InstancesPath, nil, nil)
	if err != nil {
		return nil, err
	}

	instances := make(map[string]bool)
	if len(bytes.TrimSpace(data)) == 0 {
		return instances, nil
	}
	if err := json.Unmarshal(data, &instances); err != nil {
		return nil, fmt.Errorf("provider: decode instances: %w", err)
	}
	return instances, nil
}

// StartInstance asks the provider to start model. The provider may still be
// provisioning when this returns.
func (c *Client) StartInstance(ctx context.Context, model string) error {
	q := url.Values{constant.ModelQueryParam: []string{model}}
	_, err := c.do(ctx, "start instance", http.MethodPost, constant.StartInstancePath, q, nil)
	return err
}

// StopInstance asks the provider to stop model.
func (c *Client) StopInstance(ctx context.Context, model string) error {
	q := url.Values{constant.ModelQueryParam: []string{model}}
	_, err := c.do(ctx, "stop instance", http.MethodPost, constant.StopInstancePath, q, nil)
	return err
}

// Complete runs one inference call and returns the generated text unmodified.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := buildCompletionBody(req)
	if err != nil {
		return "", fmt.Errorf("provider: build inference body: %w", err)
	}

	data, err := c.do(ctx, "inference", http.MethodPost, constant.InferencePath, nil, body)
	if err != nil {
		return "", err
	}
	return completionText(data)
}

func buildCompletionBody(req CompletionRequest) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "prompt", req.Prompt); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "temperature", req.Temperature); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "max_tokens", req.MaxTokens); err != nil {
		return nil, err
	}
	if len(req.Stop) > 0 {
		if body, err = sjson.SetBytes(body, "stop", req.Stop); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func completionText(data []byte) (string, error) {
	for _, path := range completionTextPaths {
		if r := gjson.GetBytes(data, path); r.Exists() && r.Type == gjson.String {
			return r.String(), nil
		}
	}
	return "", ErrEmptyCompletion
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: create request: %w", op, err)
	}

	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	util.ApplyHeaders(req, c.headers)

	log.WithFields(log.Fields{
		"op":   op,
		"url":  endpoint,
		"auth": util.MaskAuthorizationHeader(req.Header.Get("Authorization")),
	}).Debug("provider request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", op, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Debugf("provider: %s: close body: %v", op, errClose)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, constant.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("provider: %s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > constant.MaxErrorBodySnippet {
			snippet = snippet[:constant.MaxErrorBodySnippet]
		}
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: snippet}
	}
	return data, nil
}
