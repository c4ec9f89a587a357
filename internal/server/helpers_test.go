package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vlogy/internal/blob"
	"vlogy/internal/config"
	"vlogy/internal/database"
	"vlogy/internal/identity"
	"vlogy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeProvider emulates the Google token and userinfo endpoints.
type fakeProvider struct {
	*httptest.Server
	mu            sync.Mutex
	email         string
	status        int
	userinfoCalls atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{email: "traveler@example.com", status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc(identity.UserInfoPath, func(w http.ResponseWriter, _ *http.Request) {
		p.userinfoCalls.Add(1)
		p.mu.Lock()
		status, email := p.status, p.email
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if email == "" {
			_, _ = io.WriteString(w, `{"name":"Traveler"}`)
			return
		}
		_, _ = io.WriteString(w, `{"email":"`+email+`"}`)
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) respond(status int, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.email = email
}

type recordingUploader struct {
	mu    sync.Mutex
	err   error
	calls int
	names []string
}

func (u *recordingUploader) Put(_ context.Context, name string, _ []byte, opts blob.PutOptions) (*blob.Object, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.names = append(u.names, name)
	if u.err != nil {
		return nil, u.err
	}
	if opts.Access != blob.AccessPublic {
		return nil, errors.New("uploads must be public")
	}
	return &blob.Object{URL: "https://store.example/" + name}, nil
}

type recordingGenerator struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
	calls  int
}

func (g *recordingGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompt = prompt
	return g.reply, g.err
}

type testEnv struct {
	t        *testing.T
	app      *fiber.App
	server   *Server
	cfg      *config.Config
	provider *fakeProvider
	uploader *recordingUploader
	gen      *recordingGenerator
	cookies  map[string]*http.Cookie
}

type envOption func(cfg *config.Config, deps *Deps)

func withAssistantKey(cfg *config.Config, _ *Deps) { cfg.GeminiAPIKey = "gemini-key" }

func withFlags(flags string) envOption {
	return func(cfg *config.Config, _ *Deps) { cfg.FeatureFlags = flags }
}

func withEnv(env string) envOption {
	return func(cfg *config.Config, _ *Deps) { cfg.Env = env }
}

func withRedis(rdb *redis.Client) envOption {
	return func(_ *config.Config, deps *Deps) { deps.Redis = rdb }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	provider := newFakeProvider(t)
	dir := t.TempDir()
	cfg := &config.Config{
		Port:                   "0",
		Env:                    "test",
		SessionSecret:          config.DefaultSessionSecret,
		GoogleClientID:         "client",
		GoogleClientSecret:     "secret",
		OAuthRedirectURL:       "http://127.0.0.1:5000/login/google/authorized",
		OAuthInsecureTransport: true,
		GoogleAuthURL:          provider.URL + "/auth",
		GoogleTokenURL:         provider.URL + "/token",
		GoogleAPIURL:           provider.URL,
		SQLitePath:             filepath.Join(dir, "vlog.db"),
		UploadDir:              filepath.Join(dir, "uploads"),
		MaxUploadMB:            10,
		UpstreamTimeoutSeconds: 5,
	}

	uploader := &recordingUploader{}
	gen := &recordingGenerator{reply: "Go at dawn."}
	deps := Deps{Uploader: uploader, Generator: gen}
	for _, opt := range opts {
		opt(cfg, &deps)
	}
	t.Setenv("APP_ENV", cfg.Env)

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	deps.DB = db
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	srv, err := NewServerWithDeps(cfg, deps)
	require.NoError(t, err)

	return &testEnv{
		t:        t,
		app:      srv.App(),
		server:   srv,
		cfg:      cfg,
		provider: provider,
		uploader: uploader,
		gen:      gen,
		cookies:  map[string]*http.Cookie{},
	}
}

// do sends req with the stored cookies and records any cookies the response sets.
func (e *testEnv) do(req *http.Request) *http.Response {
	e.t.Helper()
	for _, ck := range e.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)

	for _, ck := range resp.Cookies() {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now()))
		if expired || ck.Value == "" {
			delete(e.cookies, ck.Name)
			continue
		}
		e.cookies[ck.Name] = ck
	}
	return resp
}

func (e *testEnv) get(path string) *http.Response {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// login runs the OAuth dance against the fake provider and loads the feed once
// so the session picks up the user.
func (e *testEnv) login() {
	e.t.Helper()
	resp := e.get("/login/google")
	require.Equal(e.t, fiber.StatusFound, resp.StatusCode)

	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(e.t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(e.t, state)

	resp = e.get("/login/google/authorized?code=abc&state=" + url.QueryEscape(state))
	require.Equal(e.t, fiber.StatusFound, resp.StatusCode)
	require.Equal(e.t, "/", resp.Header.Get("Location"))

	resp = e.get("/")
	require.Equal(e.t, fiber.StatusOK, resp.StatusCode)
	require.Contains(e.t, body(e.t, resp), "Signed in as traveler@example.com")
}

type uploadPart struct {
	field, name string
	content     []byte
}

func (e *testEnv) upload(fields map[string]string, files ...uploadPart) *http.Response {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(e.t, err)
		_, err = part.Write(f.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) chat(raw string) (int, string) {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := e.do(req)

	var out map[string]string
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	reply, ok := out["reply"]
	require.True(e.t, ok, "response must carry a reply key")
	return resp.StatusCode, reply
}

func (e *testEnv) posts() []*models.Post {
	e.t.Helper()
	var posts []*models.Post
	require.NoError(e.t, e.server.db.Order("id ASC").Find(&posts).Error)
	return posts
}
