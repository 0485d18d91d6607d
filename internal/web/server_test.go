package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

// fakeLLM is an OpenAI-compatible endpoint that answers every prompt with
// "answer: <prompt>".
type fakeLLM struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeLLM(t *testing.T) *fakeLLM {
	t.Helper()
	f := &fakeLLM{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prompt := body.Messages[len(body.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "answer: " + prompt},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(f.Close)
	return f
}

func testResolver(baseURL string) config.Resolver {
	return func(name string) (config.ProviderConfig, error) {
		switch strings.ToLower(name) {
		case "deepseek":
			return config.ProviderConfig{Provider: "deepseek", APIKey: "k", BaseURL: baseURL, Model: "deepseek-chat"}, nil
		case "kimi":
			return config.ProviderConfig{Provider: "kimi", APIKey: "k", BaseURL: baseURL, Model: "moonshot-v1-8k"}, nil
		default:
			return config.ProviderConfig{}, fmt.Errorf("%w %q", config.ErrUnknownProvider, name)
		}
	}
}

func testRegistry(t *testing.T) *skill.Registry {
	t.Helper()
	r, err := skill.NewRegistry(
		skill.Skill{ID: 1, Name: "Clarify (C)", Description: "first", Template: "S1 {{input}}"},
		skill.Skill{ID: 2, Name: "Function Model", Template: "S2 {{input}}"},
		skill.Skill{ID: 3, Name: "Contradiction", Template: "S3 {{input}}"},
	)
	require.NoError(t, err)
	return r
}

type testEnv struct {
	srv    *Server
	http   *httptest.Server
	client *http.Client
	llm    *fakeLLM
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *Options)) *testEnv {
	t.Helper()
	llm := newFakeLLM(t)

	cfg := config.DefaultConfig()
	cfg.Server.RunsPerMinute = 600
	opts := Options{
		Config:   cfg,
		Registry: testRegistry(t),
		Resolve:  testResolver(llm.URL),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(cfg, &opts)
	}

	srv, err := NewServer(opts)
	require.NoError(t, err)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{srv: srv, http: hs, client: &http.Client{Jar: jar}, llm: llm}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) session(t *testing.T) sessionView {
	t.Helper()
	resp, data := e.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v sessionView
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func (e *testEnv) sessionID(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(e.http.URL)
	require.NoError(t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == CookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestStatelessRoutesCreateNoSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for i := 0; i < 50; i++ {
		for _, path := range []string{"/api/health", "/api/skills"} {
			resp, err := http.Get(env.http.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Empty(t, resp.Cookies())
		}
	}
	assert.Zero(t, env.srv.sessions.Len())

	env.session(t)
	assert.Equal(t, 1, env.srv.sessions.Len())
}

func TestEndSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPut, "/api/session/input", map[string]string{"input": "old text"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := env.sessionID(t)

	resp, _ = env.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := env.srv.sessions.Get(first)
	assert.False(t, ok)

	v := env.session(t)
	assert.NotEqual(t, first, v.ID)
	assert.Empty(t, v.Input)
	assert.Equal(t, 1, env.srv.sessions.Len())
}

func TestSkills(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := env.do(t, http.MethodGet, "/api/skills", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var skills []skillView
	require.NoError(t, json.Unmarshal(data, &skills))
	require.Len(t, skills, 3)
	assert.Equal(t, skillView{ID: 1, Name: "Clarify (C)", ShortName: "Clarify", Description: "first"}, skills[0])
}

func TestSession_CookieKeepsState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	v := env.session(t)
	assert.Equal(t, "deepseek", v.Provider)
	assert.Equal(t, "deepseek-chat", v.Model)
	assert.Equal(t, 3, v.Total)
	assert.Zero(t, v.Completed)
	assert.Empty(t, v.ProviderError)

	again := env.session(t)
	assert.Equal(t, v.ID, again.ID)
	assert.Equal(t, v.ID, env.sessionID(t))
}

func TestRunSingle_EmptyInputWarns(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"warning":"Please provide input text."}`, string(data))

	assert.Zero(t, env.llm.calls.Load())
	assert.Zero(t, env.session(t).Completed)
}

func TestRunSingle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := env.do(t, http.MethodPost, "/api/skills/2/run", map[string]string{"input": "pump leaks"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var v sessionView
	require.NoError(t, json.Unmarshal(data, &v))
	require.Len(t, v.Results, 1)
	assert.Equal(t, 2, v.Results[0].ID)
	assert.Equal(t, "answer: S2 pump leaks", v.Results[0].Text)
	assert.Contains(t, v.Results[0].HTML, "answer: S2 pump leaks")
	assert.Equal(t, "pump leaks", v.Input)
	assert.Equal(t, 1, v.Completed)
}

func TestRunSingle_UsesSessionInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPut, "/api/session/input", map[string]string{"input": "stored text"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.do(t, http.MethodPost, "/api/skills/1/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Contains(t, string(data), "answer: S1 stored text")
}

func TestRunSingle_UnknownSkill(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, id := range []string{"99", "abc"} {
		resp, _ := env.do(t, http.MethodPost, "/api/skills/"+id+"/run", map[string]string{"input": "x"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Zero(t, env.llm.calls.Load())
}

func TestRunAll_ReportAndClear(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data := env.do(t, http.MethodPost, "/api/run-all", map[string]string{"input": "motor overheats"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var v sessionView
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, 3, v.Completed)
	assert.Equal(t, []int{1, 2, 3}, []int{v.Results[0].ID, v.Results[1].ID, v.Results[2].ID})
	assert.EqualValues(t, 3, env.llm.calls.Load())

	resp, data = env.do(t, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="TRIZ_Full_Report.md"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(string(data), "# TRIZ Analysis Report\n\n## Original Input\n\nmotor overheats...\n\n---\n\n"))
	assert.Contains(t, string(data), "## Function Model\n\nanswer: S2 motor overheats\n\n---\n\n")

	resp, data = env.do(t, http.MethodGet, "/api/skills/3/output", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="skill_3_output.md"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "answer: S3 motor overheats", string(data))

	resp, data = env.do(t, http.MethodPost, "/api/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Zero(t, v.Completed)
	assert.Equal(t, "motor overheats", v.Input)

	resp, _ = env.do(t, http.MethodGet, "/api/skills/3/output", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunAll_GenerationFailureStoredAsResult(t *testing.T) {
	t.Parallel()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(failing.Close)

	env := newTestEnv(t, func(_ *config.Config, o *Options) { o.Resolve = testResolver(failing.URL) })

	resp, data := env.do(t, http.MethodPost, "/api/run-all", map[string]string{"input": "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v sessionView
	require.NoError(t, json.Unmarshal(data, &v))
	require.Equal(t, 3, v.Completed)
	for _, r := range v.Results {
		assert.True(t, strings.HasPrefix(r.Text, "Error calling deepseek: "), r.Text)
	}
}

func TestProvider_Switch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := env.do(t, http.MethodPut, "/api/provider", map[string]string{"provider": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "unsupported provider")
	assert.Equal(t, "deepseek", env.session(t).Provider)

	resp, data = env.do(t, http.MethodPut, "/api/provider", map[string]string{"provider": "kimi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	v := env.session(t)
	assert.Equal(t, "kimi", v.Provider)
	assert.Equal(t, "moonshot-v1-8k", v.Model)
}

func TestProvider_MissingKeyAtStartup(t *testing.T) {
	t.Parallel()
	llm := newFakeLLM(t)
	env := newTestEnv(t, func(_ *config.Config, o *Options) {
		good := testResolver(llm.URL)
		o.Resolve = func(name string) (config.ProviderConfig, error) {
			if name == "deepseek" {
				return config.ProviderConfig{}, fmt.Errorf("%w: set DEEPSEEK_API_KEY", config.ErrMissingAPIKey)
			}
			return good(name)
		}
	})

	v := env.session(t)
	assert.Contains(t, v.ProviderError, "DEEPSEEK_API_KEY")

	resp, data := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Connection Error")

	resp, data = env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "no provider configured")

	resp, _ = env.do(t, http.MethodPut, "/api/provider", map[string]string{"provider": "kimi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.session(t).ProviderError)

	resp, _ = env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "x"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, llm.calls.Load())
}

func upload(t *testing.T, env *testEnv, name string, content []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.http.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := env.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestUpload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, data := upload(t, env, "problem.md", []byte("# Problem\n\nThe seal wears out."))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var v sessionView
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, "# Problem\n\nThe seal wears out.", v.Input)
	assert.Contains(t, v.Upload, "File 'problem.md' loaded successfully!")
	assert.Contains(t, v.Upload, "30 characters")
}

func TestUpload_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *config.Config, _ *Options) { c.Upload.MaxBytes = 64 })

	resp, _ := upload(t, env, "photo.png", []byte("x"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, data := upload(t, env, "bad.docx", []byte("not a zip"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Contains(t, string(data), "Error reading file")

	resp, _ = upload(t, env, "big.txt", bytes.Repeat([]byte("a"), 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	assert.Empty(t, env.session(t).Input)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(c *config.Config, _ *Options) { c.Server.RunsPerMinute = 1 })

	resp, _ := env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "x"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestBusySessionConflicts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.session(t)

	e, ok := env.srv.sessions.Get(env.sessionID(t))
	require.True(t, ok)
	e.Lock()
	defer e.Unlock()

	resp, _ := env.do(t, http.MethodPost, "/api/clear", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/skills/1/run", map[string]string{"input": "**bold** <script>alert(1)</script>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(data)

	assert.Contains(t, page, "TRIZ Automation Agent")
	assert.Contains(t, page, "<li>Clarify</li>")
	assert.Contains(t, page, "1/3")
	assert.Contains(t, page, "<strong>bold</strong>")
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, `accept=".pdf,.docx,.txt,.md"`)
}

func TestShutdown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	assert.NoError(t, env.srv.Shutdown(context.Background()))
	assert.Equal(t, "127.0.0.1:8501", env.srv.Addr())
}
