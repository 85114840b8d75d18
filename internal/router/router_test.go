package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-posts-api/internal/types"
)

type stubAuthHandler struct{}

func (stubAuthHandler) Signup(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusCreated)
}
func (stubAuthHandler) Signin(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

type stubPostHandler struct{}

func (stubPostHandler) Create(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusCreated)
}
func (stubPostHandler) FindAll(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
func (stubPostHandler) FindOne(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
func (stubPostHandler) Update(w http.ResponseWriter, _ *http.Request)  { w.WriteHeader(http.StatusOK) }
func (stubPostHandler) Remove(w http.ResponseWriter, _ *http.Request)  { w.WriteHeader(http.StatusOK) }

// denyAll stands in for the token middleware.
func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newTestConfig() *Config {
	return &Config{
		AuthHandler:            stubAuthHandler{},
		PostHandler:            stubPostHandler{},
		AuthenticateMiddleware: denyAll,
		Uploads: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, r.URL.Path)
		}),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: 5 * time.Second,
	}
}

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSetupRouter_Routes(t *testing.T) {
	r := SetupRouter(newTestConfig())

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
	}{
		{"ping", http.MethodGet, "/ping", nil, http.StatusOK},
		{"signup", http.MethodPost, "/auth/signup", nil, http.StatusCreated},
		{"signin", http.MethodPost, "/auth/signin", nil, http.StatusOK},
		{"posts guarded", http.MethodGet, "/posts", nil, http.StatusUnauthorized},
		{"posts with header", http.MethodGet, "/posts", map[string]string{"Authorization": "Bearer x"}, http.StatusOK},
		{"trailing slash", http.MethodGet, "/posts/", map[string]string{"Authorization": "Bearer x"}, http.StatusOK},
		{"create", http.MethodPost, "/posts", map[string]string{"Authorization": "Bearer x"}, http.StatusCreated},
		{"patch", http.MethodPatch, "/posts/1", map[string]string{"Authorization": "Bearer x"}, http.StatusOK},
		{"delete", http.MethodDelete, "/posts/1", map[string]string{"Authorization": "Bearer x"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(r, tt.method, tt.path, tt.header)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestSetupRouter_Ping(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodGet, "/ping", nil)
	assert.Equal(t, "pong", rr.Body.String())
}

func TestSetupRouter_NotFoundEnvelope(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodGet, "/missing", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, http.StatusNotFound, envelope.StatusCode)
	assert.Equal(t, "Cannot GET /missing", envelope.Message)
	assert.Equal(t, "/missing", envelope.Path)
}

func TestSetupRouter_MethodNotAllowed(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodPut, "/ping", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestSetupRouter_UploadsStripPrefix(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodGet, "/uploads/a.webp", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/a.webp", rr.Body.String())
}

func TestSetupRouter_AuthRateLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.AuthRequests = 2
	cfg.AuthWindow = time.Minute
	r := SetupRouter(cfg)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/auth/signin", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/auth/signin", nil).Code)

	rr := serve(r, http.MethodPost, "/auth/signin", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, "Too many requests", envelope.Message)

	// Posts are not rate limited.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/posts", map[string]string{"Authorization": "Bearer x"}).Code)
}

func TestSetupRouter_CORS(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodOptions, "/posts", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRouter_SwaggerDoc(t *testing.T) {
	rr := serve(SetupRouter(newTestConfig()), http.MethodGet, "/api/doc.json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/auth/signup")
}

func TestSetupRouter_CORSConfiguredOrigins(t *testing.T) {
	cfg := newTestConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	r := SetupRouter(cfg)

	preflight := func(origin string) string {
		return serve(r, http.MethodOptions, "/posts", map[string]string{
			"Origin":                        origin,
			"Access-Control-Request-Method": http.MethodGet,
		}).Header().Get("Access-Control-Allow-Origin")
	}
	assert.Equal(t, "https://app.example.com", preflight("https://app.example.com"))
	assert.Empty(t, preflight("http://localhost:5173"))
}
