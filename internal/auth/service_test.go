package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/relaychat-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st)
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
	}{
		{"empty id", Registration{ID: "", Name: "Alice", Password: "secret"}},
		{"comma in id", Registration{ID: "a,b", Name: "Alice", Password: "secret"}},
		{"space in id", Registration{ID: "a b", Name: "Alice", Password: "secret"}},
		{"comma in name", Registration{ID: "alice", Name: "Al,ice", Password: "secret"}},
		{"short password", Registration{ID: "alice", Name: "Alice", Password: "abc"}},
		{"long id", Registration{ID: strings.Repeat("a", 33), Name: "Alice", Password: "secret"}},
		{"long password", Registration{ID: "alice", Name: "Alice", Password: strings.Repeat("p", 73)}},
		{"reserved system id", Registration{ID: "SYSTEM", Name: "Mallory", Password: "secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.reg); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if tt.reg.ID == "" {
				return
			}
			if exists, err := svc.store.UserExists(ctx, tt.reg.ID); err != nil || exists {
				t.Fatalf("rejected registration must not be stored, got %v, %v", exists, err)
			}
		})
	}
}

func TestRegister_DuplicateID(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{ID: "alice", Name: "Alice", Password: "secret"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, err := svc.Register(ctx, Registration{ID: "alice", Name: "Other", Password: "secret"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{ID: "alice", Name: "Alice Liddell", Password: "secret"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.PasswordHash == "secret" || user.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}

	got, err := svc.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got.ID != "alice" || got.Username != "Alice Liddell" {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "bob", "secret"); !errors.Is(err, ErrNoSuchUser) {
		t.Fatalf("expected ErrNoSuchUser, got %v", err)
	}
}

func TestOperatorToken(t *testing.T) {
	cfg := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "relaychat",
		Audience: "relaychat-ops",
		TTL:      time.Hour,
	}

	token, err := GenerateToken(cfg, "ops")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Operator != "ops" || claims.Subject != "ops" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := *cfg
	other.Audience = "someone-else"
	if _, err := ValidateToken(&other, token); err == nil {
		t.Fatalf("expected audience mismatch")
	}

	other = *cfg
	other.Secret = []byte("another-secret")
	if _, err := ValidateToken(&other, token); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired := *cfg
	expired.TTL = -time.Minute
	token, err = GenerateToken(&expired, "ops")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	if _, err := GenerateToken(&JWTConfig{}, "ops"); err == nil {
		t.Fatalf("expected error without secret")
	}
}
