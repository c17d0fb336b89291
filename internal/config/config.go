// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the lltranslate server.
// It handles loading and parsing YAML configuration files, applies defaults and
// environment overrides, and provides structured access to the provider,
// inference, caching and session settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultProviderBaseURL is the Together-compatible API root.
	DefaultProviderBaseURL = "https://api.together.xyz"
	// DefaultModel is preselected for new sessions.
	DefaultModel = "togethercomputer/llama-2-70b-chat"
	// DefaultTemperature is the sampling temperature used for translations.
	DefaultTemperature = 0.1
	// DefaultMaxTokens caps the length of a translation response.
	DefaultMaxTokens = 1024
	// DefaultPort is where the web page is served.
	DefaultPort = 8501
	// DefaultCookieName names the session cookie.
	DefaultCookieName = "lltranslate_session"
	// DefaultSessionIdleTTLSeconds is how long an unused session is kept.
	DefaultSessionIdleTTLSeconds = 24 * 60 * 60
	// DefaultProviderTimeout bounds provider calls when timeout-seconds is unset.
	DefaultProviderTimeout = 120 * time.Second
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the server will bind.
	// Default is empty ("") to bind all interfaces.
	Host string `yaml:"host" json:"-"`
	// Port is the network port on which the server will listen.
	Port int `yaml:"port" json:"-"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// When exceeded, the oldest log files are deleted until within the limit. Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// OpenBrowser opens the UI in the default browser once the server is listening.
	OpenBrowser bool `yaml:"open-browser" json:"open-browser"`

	// Provider configures the model-hosting API.
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Inference configures translation calls.
	Inference InferenceConfig `yaml:"inference" json:"inference"`

	// Registry configures caching of model list calls.
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// TranslationCache configures the translation result cache.
	TranslationCache CacheConfig `yaml:"translation-cache" json:"translation-cache"`

	// Session configures browser sessions.
	Session SessionConfig `yaml:"session" json:"session"`

	// RemoteManagement guards management endpoints.
	RemoteManagement RemoteManagement `yaml:"remote-management" json:"-"`
}

// ProviderConfig holds model-hosting API settings.
type ProviderConfig struct {
	// BaseURL is the API root. Default: https://api.together.xyz
	BaseURL string `yaml:"base-url" json:"base-url"`
	// APIKey authenticates requests. Falls back to TOGETHER_API_KEY.
	APIKey string `yaml:"api-key" json:"-"`
	// TimeoutSeconds bounds every provider HTTP call.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds"`
	// Headers optionally adds extra HTTP headers for requests.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// InferenceConfig holds the parameters of a translation call.
type InferenceConfig struct {
	// DefaultModel is selected for new sessions. Empty means no selection.
	DefaultModel string `yaml:"default-model" json:"default-model"`
	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	// MaxTokens caps the response length.
	MaxTokens int `yaml:"max-tokens" json:"max-tokens"`
	// Stop lists optional stop sequences.
	Stop []string `yaml:"stop,omitempty" json:"stop,omitempty"`
}

// RegistryConfig controls how long model list results are reused.
type RegistryConfig struct {
	// ModelsTTLSeconds is the lifetime of the cached model list.
	ModelsTTLSeconds int `yaml:"models-ttl-seconds" json:"models-ttl-seconds"`
	// RunningTTLSeconds is the lifetime of the cached running-instance set.
	RunningTTLSeconds int `yaml:"running-ttl-seconds" json:"running-ttl-seconds"`
	// ModelFilter is an optional boolean expression over model metadata
	// (name, display_name, display_type, context_length, owner).
	ModelFilter string `yaml:"model-filter,omitempty" json:"model-filter,omitempty"`
}

// CacheConfig bounds a result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max-entries" json:"max-entries"`
	TTLSeconds int `yaml:"ttl-seconds" json:"ttl-seconds"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	CookieName     string `yaml:"cookie-name" json:"cookie-name"`
	IdleTTLSeconds int    `yaml:"idle-ttl-seconds" json:"idle-ttl-seconds"`
	MaxSessions    int    `yaml:"max-sessions" json:"max-sessions"`
}

// RemoteManagement holds management API configuration under 'remote-management'.
type RemoteManagement struct {
	// SecretKey is the management key (plaintext or bcrypt hashed). YAML key intentionally 'secret-key'.
	SecretKey string `yaml:"secret-key"`
}

// Timeout returns the provider call timeout, falling back to the default when unset.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ModelsTTL returns the model list cache lifetime.
func (c *Config) ModelsTTL() time.Duration {
	return time.Duration(c.Registry.ModelsTTLSeconds) * time.Second
}

// RunningTTL returns the running-instance cache lifetime.
func (c *Config) RunningTTL() time.Duration {
	return time.Duration(c.Registry.RunningTTLSeconds) * time.Second
}

// TranslationTTL returns the translation cache lifetime.
func (c *Config) TranslationTTL() time.Duration {
	return time.Duration(c.TranslationCache.TTLSeconds) * time.Second
}

// SessionIdleTTL returns how long an idle session is kept.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.Session.IdleTTLSeconds) * time.Second
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Sanitize()
	return cfg
}

// applyDefaults sets values before unmarshal so that absent keys keep them.
func applyDefaults(cfg *Config) {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.LoggingToFile = false
	cfg.LogsMaxTotalSizeMB = 0
	cfg.Provider.BaseURL = DefaultProviderBaseURL
	cfg.Provider.TimeoutSeconds = int(DefaultProviderTimeout / time.Second)
	cfg.Inference.DefaultModel = DefaultModel
	cfg.Inference.Temperature = DefaultTemperature
	cfg.Inference.MaxTokens = DefaultMaxTokens
	cfg.Registry.ModelsTTLSeconds = 600
	cfg.Registry.RunningTTLSeconds = 5
	cfg.TranslationCache.MaxEntries = 512
	cfg.TranslationCache.TTLSeconds = 3600
	cfg.Session.CookieName = DefaultCookieName
	cfg.Session.IdleTTLSeconds = DefaultSessionIdleTTLSeconds
	cfg.Session.MaxSessions = 10000
}

// LoadConfig reads and parses the YAML configuration file.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads the configuration file. When optional is true a
// missing or empty file yields the defaults instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			cfg := Default()
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	applyDefaults(&cfg)

	if len(data) > 0 {
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Hash the management key if plaintext is detected and persist it so it
	// is not re-hashed on the next start.
	if cfg.RemoteManagement.SecretKey != "" && !looksLikeBcrypt(cfg.RemoteManagement.SecretKey) {
		hashed, errHash := hashSecret(cfg.RemoteManagement.SecretKey)
		if errHash != nil {
			return nil, fmt.Errorf("failed to hash remote management key: %w", errHash)
		}
		cfg.RemoteManagement.SecretKey = hashed
		if errSave := WriteScalar(configFile, hashed, "remote-management", "secret-key"); errSave != nil {
			log.Warnf("could not persist hashed management key: %v", errSave)
		}
	}

	cfg.ApplyEnv()
	cfg.Sanitize()
	return &cfg, nil
}

// ApplyEnv overrides settings from the environment. TOGETHER_API_KEY is only
// used when the file does not set an API key.
func (c *Config) ApplyEnv() {
	if c.Provider.APIKey == "" {
		if v, ok := lookupEnv("LLTRANSLATE_API_KEY", "TOGETHER_API_KEY"); ok {
			c.Provider.APIKey = v
		}
	}
	if v, ok := lookupEnv("LLTRANSLATE_BASE_URL"); ok {
		c.Provider.BaseURL = v
	}
	if v, ok := lookupEnv("LLTRANSLATE_DEFAULT_MODEL"); ok {
		c.Inference.DefaultModel = v
	}
	if v, ok := lookupEnv("LLTRANSLATE_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v, ok := lookupEnv("LLTRANSLATE_DEBUG"); ok {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Debug = debug
		}
	}
}

// Sanitize normalizes values and replaces invalid ones with defaults.
func (c *Config) Sanitize() {
	c.Host = strings.TrimSpace(c.Host)
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.LogsMaxTotalSizeMB < 0 {
		c.LogsMaxTotalSizeMB = 0
	}

	c.Provider.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderBaseURL
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = int(DefaultProviderTimeout / time.Second)
	}
	c.Provider.Headers = NormalizeHeaders(c.Provider.Headers)

	c.Inference.DefaultModel = strings.TrimSpace(c.Inference.DefaultModel)
	if c.Inference.Temperature < 0 {
		c.Inference.Temperature = DefaultTemperature
	}
	if c.Inference.MaxTokens <= 0 {
		c.Inference.MaxTokens = DefaultMaxTokens
	}

	if c.Registry.ModelsTTLSeconds < 0 {
		c.Registry.ModelsTTLSeconds = 0
	}
	if c.Registry.RunningTTLSeconds < 0 {
		c.Registry.RunningTTLSeconds = 0
	}
	c.Registry.ModelFilter = strings.TrimSpace(c.Registry.ModelFilter)

	if c.TranslationCache.MaxEntries <= 0 {
		c.TranslationCache.MaxEntries = 512
	}
	if c.TranslationCache.TTLSeconds < 0 {
		c.TranslationCache.TTLSeconds = 0
	}

	c.Session.CookieName = strings.TrimSpace(c.Session.CookieName)
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Session.IdleTTLSeconds <= 0 {
		c.Session.IdleTTLSeconds = DefaultSessionIdleTTLSeconds
	}
	if c.Session.MaxSessions <= 0 {
		c.Session.MaxSessions = 10000
	}
}

// CheckManagementKey reports whether key matches the configured management secret.
// It returns false when no secret is configured.
func (c *Config) CheckManagementKey(key string) bool {
	secret := c.RemoteManagement.SecretKey
	if secret == "" || key == "" {
		return false
	}
	if looksLikeBcrypt(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(key)) == nil
	}
	return secret == key
}

// NormalizeHeaders trims header keys and values and removes empty pairs.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	clean := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		clean[key] = val
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// looksLikeBcrypt returns true if the provided string appears to be a bcrypt hash.
func looksLikeBcrypt(s string) bool {
	return len(s) > 4 && (s[:4] == "$2a$" || s[:4] == "$2b$" || s[:4] == "$2y$")
}

// hashSecret hashes the given secret using bcrypt.
func hashSecret(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}
