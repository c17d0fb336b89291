// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/session"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestUIURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://localhost:8501/", uiURL(cfg))

	cfg.Host = "127.0.0.1"
	cfg.Port = 9000
	assert.Equal(t, "http://127.0.0.1:9000/", uiURL(cfg))
}

func TestNewService_InvalidFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.ModelFilter = "display_type =="

	_, err := NewService(cfg, "")
	require.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	cfg := config.Default()
	svc, err := NewService(cfg, "")
	require.NoError(t, err)
	defer svc.close()

	next := config.Default()
	next.Inference.DefaultModel = "mistralai/Mixtral-8x7B-Instruct-v0.1"
	next.Inference.MaxTokens = 256
	next.Inference.Stop = []string{"[INST]"}
	next.Registry.ModelFilter = "not valid ==="

	svc.ApplyConfig(next)

	assert.Equal(t, "mistralai/Mixtral-8x7B-Instruct-v0.1", svc.sessions.Fresh().Selected)
	params := svc.translator.Params()
	assert.Equal(t, 256, params.MaxTokens)
	assert.Equal(t, []string{"[INST]"}, params.Stop)
}

func TestSweepSessions_DropsIdle(t *testing.T) {
	svc, err := NewService(config.Default(), "")
	require.NoError(t, err)
	defer svc.close()

	svc.sessions = session.NewStore(10, 20*time.Millisecond, "")
	svc.sessions.Save("idle", session.State{Selected: "m"})
	require.Equal(t, 1, svc.sessions.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.sweepSessions(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return svc.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("port: 8501\n"), 0o600))

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = freePort(t)
	cfg.OpenBrowser = true

	svc, err := NewService(cfg, configPath)
	require.NoError(t, err)

	opened := make(chan string, 1)
	svc.openBrowser = func(url string) error {
		opened <- url
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, cfg) }()

	select {
	case url := <-opened:
		assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d/", cfg.Port), url)
	case <-time.After(2 * time.Second):
		t.Fatal("browser was not opened")
	}

	require.Eventually(t, func() bool {
		resp, errGet := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Port))
		if errGet != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not shut down")
	}
}
