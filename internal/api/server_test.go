// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/provider"
	"github.com/traylinx/lltranslate/internal/registry"
	"github.com/traylinx/lltranslate/internal/session"
	"github.com/traylinx/lltranslate/internal/translate"
)

// fakeProvider emulates the hosting API in memory.
type fakeProvider struct {
	mu        sync.Mutex
	models    []string
	running   map[string]bool
	calls     []string
	failStart bool
	badKey    bool
	output    string
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	model := r.URL.Query().Get("model")
	switch r.URL.Path {
	case "/models/info":
		list := make([]map[string]string, 0, len(f.models))
		for _, m := range f.models {
			list = append(list, map[string]string{"name": m})
		}
		_ = json.NewEncoder(w).Encode(list)
	case "/instances":
		_ = json.NewEncoder(w).Encode(f.running)
	case "/instances/start":
		f.calls = append(f.calls, "start:"+model)
		if f.badKey {
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
			return
		}
		if f.failStart {
			http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
			return
		}
		f.running[model] = true
	case "/instances/stop":
		f.calls = append(f.calls, "stop:"+model)
		f.running[model] = false
	case "/inference":
		body, _ := io.ReadAll(r.Body)
		f.calls = append(f.calls, "inference:"+gjson.GetBytes(body, "model").String())
		_, _ = io.WriteString(w, `{"output":{"choices":[{"text":`+strconvQuote(f.output)+`}]}}`)
	default:
		http.NotFound(w, r)
	}
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (f *fakeProvider) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type harness struct {
	server   *Server
	provider *fakeProvider
	cookies  []*http.Cookie
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fp := &fakeProvider{
		models:  []string{"togethercomputer/llama-2-70b-chat", "mistralai/Mixtral-8x7B-Instruct-v0.1"},
		running: map[string]bool{},
		output:  "¡Hola! (OH-lah)",
	}
	upstream := httptest.NewServer(fp)
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Provider.BaseURL = upstream.URL
	cfg.Provider.APIKey = "sk-test"
	if mutate != nil {
		mutate(cfg)
	}

	client := provider.NewClient(cfg.Provider)
	reg, err := registry.New(client, registry.Options{ModelsTTL: cfg.ModelsTTL()})
	require.NoError(t, err)

	srv := NewServer(cfg, Dependencies{
		Registry:   reg,
		Controller: session.NewController(reg, nil),
		Sessions:   session.NewStore(cfg.Session.MaxSessions, cfg.SessionIdleTTL(), cfg.Inference.DefaultModel),
		Translator: translate.New(client, translate.Options{
			Params:    translate.Params{Temperature: cfg.Inference.Temperature, MaxTokens: cfg.Inference.MaxTokens},
			CacheSize: cfg.TranslationCache.MaxEntries,
			CacheTTL:  time.Hour,
		}),
	})
	return &harness{server: srv, provider: fp}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.RemoteAddr == "" || req.RemoteAddr == "192.0.2.1:1234" {
		req.RemoteAddr = "127.0.0.1:5000"
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		h.cookies = cookies
	}
	return w
}

func (h *harness) getJSON(t *testing.T, path string) *httptest.ResponseRecorder {
	return h.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return h.do(t, req)
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	w := h.getJSON(t, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestListModels(t *testing.T) {
	h := newHarness(t, nil)
	w := h.getJSON(t, "/api/models")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Models []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, h.provider.models, body.Models)
}

func TestSessionCookie_RefreshedEachRequest(t *testing.T) {
	h := newHarness(t, nil)

	w := h.getJSON(t, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.cookies, 1)
	first := h.cookies[0]
	assert.Equal(t, config.DefaultCookieName, first.Name)
	assert.True(t, session.ValidID(first.Value))
	assert.Equal(t, config.DefaultSessionIdleTTLSeconds, first.MaxAge)
	assert.Equal(t, config.DefaultModel, gjson.Get(w.Body.String(), "selected").String())

	w = h.getJSON(t, "/api/session")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "an active session gets its cookie lifetime extended")
	assert.Equal(t, first.Value, cookies[0].Value)
	assert.Equal(t, config.DefaultSessionIdleTTLSeconds, cookies[0].MaxAge)
}

func TestSelectModel_SwitchesInstances(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.running[config.DefaultModel] = true

	w := h.postJSON(t, "/api/session/model", `{"model":"mistralai/Mixtral-8x7B-Instruct-v0.1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{
		"stop:" + config.DefaultModel,
		"start:mistralai/Mixtral-8x7B-Instruct-v0.1",
	}, h.provider.callLog())
	assert.Equal(t, "mistralai/Mixtral-8x7B-Instruct-v0.1", gjson.Get(w.Body.String(), "selected").String())

	w = h.getJSON(t, "/api/session")
	assert.Equal(t, "mistralai/Mixtral-8x7B-Instruct-v0.1", gjson.Get(w.Body.String(), "selected").String())
	notices := gjson.Get(w.Body.String(), "notices").Array()
	require.Len(t, notices, 2)
	assert.Equal(t, "Stopped model: "+config.DefaultModel, notices[0].String())

	w = h.getJSON(t, "/api/session")
	assert.False(t, gjson.Get(w.Body.String(), "notices").Exists(), "notices are delivered once")
}

func TestSelectModel_Errors(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON(t, "/api/session/model", `{"model":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", gjson.Get(w.Body.String(), "error").String())

	w = h.postJSON(t, "/api/session/model", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.provider.failStart = true
	w = h.postJSON(t, "/api/session/model", `{"model":"mistralai/Mixtral-8x7B-Instruct-v0.1"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "provider_error", gjson.Get(w.Body.String(), "error").String())

	w = h.getJSON(t, "/api/session")
	assert.Equal(t, config.DefaultModel, gjson.Get(w.Body.String(), "selected").String())
}

func TestStartStopInstance(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON(t, "/api/instances/start", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, config.DefaultModel, gjson.Get(w.Body.String(), "model").String())

	w = h.postJSON(t, "/api/instances/stop", `{"model":"other/model"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"start:" + config.DefaultModel, "stop:other/model"}, h.provider.callLog())

	w = h.getJSON(t, "/api/session")
	assert.Equal(t, config.DefaultModel, gjson.Get(w.Body.String(), "selected").String())
}

func TestStartInstance_RejectedKeyIsLogged(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	h := newHarness(t, nil)
	h.provider.badKey = true

	w := h.postJSON(t, "/api/instances/start", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var hinted bool
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "provider rejected the API key") {
			hinted = true
		}
	}
	assert.True(t, hinted, "a 401 from the provider points at the API key setting")
}

func TestStartInstance_NoSelection(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Inference.DefaultModel = "" })

	w := h.postJSON(t, "/api/instances/start", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.provider.callLog())
}

func TestRunningWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.running["b/model"] = true
	h.provider.running["a/model"] = true
	h.provider.running["c/model"] = false

	w := h.getJSON(t, "/api/models/running")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "multiple").Bool())
	ids := []string{}
	for _, r := range gjson.Get(w.Body.String(), "running_models").Array() {
		ids = append(ids, r.String())
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Equal(t, []string{"a/model", "b/model"}, ids)

	w = h.getJSON(t, "/api/session")
	assert.Equal(t, session.MultipleRunningWarning+"\n\na/model, b/model", gjson.Get(w.Body.String(), "warning").String())
}

func TestTranslate(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postJSON(t, "/api/translate", `{"text":"hello","language":"Spanish"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "¡Hola! (OH-lah)", gjson.Get(w.Body.String(), "output").String())
	assert.False(t, gjson.Get(w.Body.String(), "cached").Bool())
	assert.Equal(t, config.DefaultModel, gjson.Get(w.Body.String(), "model").String())

	w = h.postJSON(t, "/api/translate", `{"text":"hello","language":"Spanish"}`)
	assert.True(t, gjson.Get(w.Body.String(), "cached").Bool())

	w = h.postJSON(t, "/api/translate", `{"text":"","language":"Spanish"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "skipped").Bool())
	assert.Empty(t, gjson.Get(w.Body.String(), "output").String())

	assert.Equal(t, []string{"inference:" + config.DefaultModel}, h.provider.callLog())
}

func TestTranslate_NoModel(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Inference.DefaultModel = "" })
	w := h.postJSON(t, "/api/translate", `{"text":"hello","language":"Spanish"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexPage(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.running["x"] = true
	h.provider.running["y"] = true

	w := h.getJSON(t, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<option value="togethercomputer/llama-2-70b-chat" selected>`)
	assert.Contains(t, body, "too many together instances running")
	assert.Contains(t, body, "x, y")
}

func TestUIFlow(t *testing.T) {
	h := newHarness(t, nil)

	w := h.postForm(t, "/ui/select", url.Values{"model": {"mistralai/Mixtral-8x7B-Instruct-v0.1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = h.getJSON(t, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Started model: mistralai/Mixtral-8x7B-Instruct-v0.1")

	w = h.getJSON(t, "/")
	assert.NotContains(t, w.Body.String(), "Started model:")

	w = h.postForm(t, "/ui/translate", url.Values{"text": {"good morning"}, "language": {"Japanese"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "¡Hola! (OH-lah)")
	assert.Contains(t, w.Body.String(), `value="good morning"`)

	w = h.postForm(t, "/ui/stop", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, h.provider.callLog(), "stop:mistralai/Mixtral-8x7B-Instruct-v0.1")
}

func TestUISelect_ProviderFailureRendersBanner(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.failStart = true

	w := h.postForm(t, "/ui/select", url.Values{"model": {"mistralai/Mixtral-8x7B-Instruct-v0.1"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)
	assert.Contains(t, w.Body.String(), "402")
}

func TestCacheEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	_ = h.getJSON(t, "/api/models")
	_ = h.getJSON(t, "/api/models")

	w := h.getJSON(t, "/api/cache/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "registry.hits").Int())

	w = h.postJSON(t, "/api/cache/clear", "")
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	w = h.do(t, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCacheClear_WithSecret(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.RemoteManagement.SecretKey = "s3cret" })

	w := h.postJSON(t, "/api/cache/clear", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Management-Key", "s3cret")
	w = h.do(t, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = h.do(t, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
