package http

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat-server/internal/auth"
	"github.com/vovakirdan/relaychat-server/internal/config"
	"github.com/vovakirdan/relaychat-server/internal/core"
	"github.com/vovakirdan/relaychat-server/internal/session"
	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
)

type testEnv struct {
	hub  *core.Hub
	auth *auth.Service
	jwt  *auth.JWTConfig
	ts   *httptest.Server
}

// startTestServer serves the full HTTP surface over an in-memory store.
func startTestServer(t *testing.T, jwtSecret string) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := core.NewHub(st, nil)
	if err := hub.Load(context.Background()); err != nil {
		t.Fatalf("load hub: %v", err)
	}

	disabledLogger := zerolog.Nop()
	authService := auth.NewService(st)
	dispatcher := session.NewDispatcher(hub, authService, &disabledLogger)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	cfg := config.Config{
		HTTPAddr:          ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		MaxLineBytes:      4096,
	}

	server := NewServer(hub, dispatcher, jwtConfig, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{hub: hub, auth: authService, jwt: jwtConfig, ts: ts}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()

	token, err := auth.GenerateToken(e.jwt, "ops")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// connectUser registers an account and binds a recording connection to it.
func (e *testEnv) connectUser(t *testing.T, id, name string) *lineRecorder {
	t.Helper()

	ctx := context.Background()
	if _, err := e.auth.Register(ctx, auth.Registration{ID: id, Name: name, Password: "secret"}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	rec := &lineRecorder{}
	if err := e.hub.Connect(ctx, id, rec); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	return rec
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) Send(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *lineRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
