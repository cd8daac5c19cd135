package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	return cfg
}

func TestBuildRequiresCollaborators(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if _, err := New().WithConfig(testConfig()).WithDirectory(newFakeDirectory()).Build(); err == nil {
		t.Fatal("Build without redis must fail")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(client).Build(); err == nil {
		t.Fatal("Build without directory must fail")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := New().WithConfig(testConfig()).WithRedis(client).WithDirectory(newFakeDirectory())

	svc, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access TTL", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"refresh TTL below access TTL", func(c *Config) { c.Token.RefreshTTL = time.Minute }},
		{"grace window at refresh TTL", func(c *Config) { c.Refresh.GraceWindow = c.Token.RefreshTTL }},
		{"OTP digits too short", func(c *Config) { c.OTP.Digits = 4 }},
		{"zero collaborator timeout", func(c *Config) { c.CollaboratorTimeout = 0 }},
		{"empty limit rule", func(c *Config) { c.Limits.Login = LimitRule{} }},
	}

	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("%s: validateConfig accepted bad config", tc.name)
		}
	}

	if err := validateConfig(testConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestNilServiceFailsClosed(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	if _, err := svc.Login(ctx, "a@b.com", "secret"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Login on nil service: got %v", err)
	}
	if _, err := svc.Authorize(ctx, "token", RoleEndUser); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Authorize on nil service: got %v", err)
	}
	svc.Logout(ctx, "token")
	svc.Close()
	if svc.AuditDropped() != 0 {
		t.Fatal("nil service reported drops")
	}
}

func TestIPThrottleSharesBudgetAcrossIdentifiers(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *Config) {
		cfg.Limits.Login = LimitRule{Limit: 3, Window: 5 * time.Minute}
		cfg.Limits.EnableIPThrottle = true
	})
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	// Distinct identifiers from one source burn the shared IP budget.
	for _, identifier := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := env.svc.Login(ctx, identifier, "wrong secret here"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%s): got %v", identifier, err)
		}
	}

	_, err := env.svc.Login(ctx, "d@example.com", "wrong secret here")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("fourth identifier from same IP: got %v, want ErrRateLimited", err)
	}

	// A different source is unaffected.
	other := WithClientIP(context.Background(), "198.51.100.7")
	if _, err := env.svc.Login(other, "d@example.com", "wrong secret here"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("other IP: got %v", err)
	}
}
