package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/relaychat-server/internal/store"
	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
)

var testNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

const testStamp = "[2024-03-09 14:05:07] "

// recorder is a Conn that keeps every delivered line.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Send(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

// withPrefix returns the received lines that start with prefix.
func (r *recorder) withPrefix(prefix string) []string {
	var out []string
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

func mustLine(t *testing.T, r *recorder, prefix string) string {
	t.Helper()

	lines := r.withPrefix(prefix)
	if len(lines) == 0 {
		t.Fatalf("expected a line starting with %q, got %q", prefix, r.Lines())
	}
	return lines[0]
}

func newTestStore(t testing.TB) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestHub(t *testing.T, st store.Store, opts ...Option) *Hub {
	t.Helper()

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	hub := NewHub(st, nil, opts...)
	require.NoError(t, hub.Load(context.Background()))
	return hub
}

func seedUser(t testing.TB, st store.Store, id, name string) {
	t.Helper()

	err := st.CreateUser(context.Background(), &store.User{ID: id, Username: name, PasswordHash: "x"})
	require.NoError(t, err)
}

func connect(t *testing.T, hub *Hub, id string) *recorder {
	t.Helper()

	rec := &recorder{}
	require.NoError(t, hub.Connect(context.Background(), id, rec))
	return rec
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, code, ErrorCode(err), "unexpected error: %v", err)
}
