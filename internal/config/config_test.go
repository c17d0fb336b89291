// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "")
	t.Setenv("LLTRANSLATE_API_KEY", "")
	path := writeConfig(t, "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Host, "host should bind all interfaces by default")
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultProviderBaseURL, cfg.Provider.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Inference.DefaultModel)
	assert.InDelta(t, 0.1, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.Inference.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.Provider.Timeout())
	assert.Equal(t, DefaultProviderTimeout, ProviderConfig{}.Timeout())
	assert.Equal(t, 10*time.Minute, cfg.ModelsTTL())
	assert.Equal(t, 5*time.Second, cfg.RunningTTL())
	assert.Equal(t, DefaultCookieName, cfg.Session.CookieName)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
port: 9000
debug: true
provider:
  base-url: "http://localhost:8080/"
  api-key: "file-key"
  headers:
    " X-Team ": " blue "
    "X-Empty": ""
inference:
  default-model: "mistralai/Mixtral-8x7B-Instruct-v0.1"
  temperature: 0.7
  max-tokens: 256
registry:
  model-filter: 'display_type == "chat"'
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "http://localhost:8080", cfg.Provider.BaseURL)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)
	assert.Equal(t, map[string]string{"X-Team": "blue"}, cfg.Provider.Headers)
	assert.Equal(t, "mistralai/Mixtral-8x7B-Instruct-v0.1", cfg.Inference.DefaultModel)
	assert.InDelta(t, 0.7, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, 256, cfg.Inference.MaxTokens)
	assert.Equal(t, `display_type == "chat"`, cfg.Registry.ModelFilter)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	path := writeConfig(t, `
port: -1
inference:
  temperature: -3
  max-tokens: 0
translation-cache:
  max-entries: -5
session:
  cookie-name: "  "
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.InDelta(t, DefaultTemperature, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, DefaultMaxTokens, cfg.Inference.MaxTokens)
	assert.Equal(t, 512, cfg.TranslationCache.MaxEntries)
	assert.Equal(t, DefaultCookieName, cfg.Session.CookieName)
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	t.Setenv("LLTRANSLATE_API_KEY", "")
	t.Setenv("TOGETHER_API_KEY", "env-key")
	path := writeConfig(t, "port: 8600\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Provider.APIKey)

	// A key in the file wins over the environment.
	path = writeConfig(t, "provider:\n  api-key: file-key\n")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)
}

func TestLoadConfig_ParseError(t *testing.T) {
	path := writeConfig(t, "port: [not-a-port")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigOptional_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := LoadConfig(missing)
	require.Error(t, err)

	cfg, err := LoadConfigOptional(missing, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadConfig_HashesManagementSecret(t *testing.T) {
	path := writeConfig(t, "# management\nremote-management:\n  secret-key: \"hunter2\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cfg.RemoteManagement.SecretKey, "$2"))
	assert.True(t, cfg.CheckManagementKey("hunter2"))
	assert.False(t, cfg.CheckManagementKey("wrong"))
	assert.False(t, cfg.CheckManagementKey(""))

	// The hashed value is persisted and comments survive.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), "# management")

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RemoteManagement.SecretKey, reloaded.RemoteManagement.SecretKey)
}

func TestCheckManagementKey_NoSecret(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.CheckManagementKey("anything"))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "port: 8600\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("port: 8700\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 8700, cfg.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWriteScalar(t *testing.T) {
	path := writeConfig(t, "port: 8600 # listener\ninference:\n  max-tokens: 64\n")

	require.NoError(t, WriteScalar(path, "mistral", "inference", "default-model"))
	require.NoError(t, WriteScalar(path, "s3cret", "remote-management", "secret-key"))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8600, cfg.Port)
	assert.Equal(t, 64, cfg.Inference.MaxTokens)
	assert.Equal(t, "mistral", cfg.Inference.DefaultModel)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# listener")

	assert.Error(t, WriteScalar(path, "x"))
	assert.Error(t, WriteScalar(filepath.Join(t.TempDir(), "missing.yaml"), "x", "port"))
}
