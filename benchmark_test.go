package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-posts-api/internal/api/upload"
	"github.com/FACorreiaa/go-posts-api/internal/container"
	"github.com/FACorreiaa/go-posts-api/internal/types"
)

// setupBenchmarkRouter returns the wired router and a token for a signed-up user.
func setupBenchmarkRouter(b *testing.B) (http.Handler, string) {
	b.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dir := b.TempDir()
	images, err := upload.NewLocalStore(dir, logger)
	require.NoError(b, err)

	creds := newMemoryCredentials()
	c, err := container.Build(newE2EConfig(dir), container.Stores{
		Credentials: creds,
		Posts:       newMemoryPosts(creds),
		Images:      images,
	}, nil, logger)
	require.NoError(b, err)

	router := c.Router()
	rr := serveJSON(router, http.MethodPost, "/auth/signup", "", types.AuthRequest{Email: "bench@b.com", Password: "secret1"})
	require.Equal(b, http.StatusCreated, rr.Code)

	var tok types.TokenResponse
	require.NoError(b, json.Unmarshal(rr.Body.Bytes(), &tok))
	return router, tok.AccessToken
}

func serveJSON(h http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func BenchmarkSignin(b *testing.B) {
	router, _ := setupBenchmarkRouter(b)
	creds := types.AuthRequest{Email: "bench@b.com", Password: "secret1"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rr := serveJSON(router, http.MethodPost, "/auth/signin", "", creds); rr.Code != http.StatusOK {
			b.Fatalf("signin returned %d", rr.Code)
		}
	}
}

func BenchmarkListPosts(b *testing.B) {
	router, token := setupBenchmarkRouter(b)
	for i := 0; i < 20; i++ {
		rr := serveJSON(router, http.MethodPost, "/posts", token, map[string]string{"title": "bench"})
		require.Equal(b, http.StatusCreated, rr.Code)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if rr := serveJSON(router, http.MethodGet, "/posts", token, nil); rr.Code != http.StatusOK {
				b.Errorf("list returned %d", rr.Code)
				return
			}
		}
	})
}

func BenchmarkRejectUnauthenticated(b *testing.B) {
	router, _ := setupBenchmarkRouter(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rr := serveJSON(router, http.MethodGet, "/posts", "", nil); rr.Code != http.StatusUnauthorized {
			b.Fatalf("unauthenticated request returned %d", rr.Code)
		}
	}
}
