package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	next, err := env.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a new refresh token")
	}
	if next.AccessToken == "" {
		t.Fatal("rotation must mint a new access token")
	}

	// The rotated-in token keeps working.
	if _, err := env.svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.Refresh(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestRefreshRetryWithinGrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	first, err := env.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// A client that never saw the response retries with the same token.
	// Inside the grace window this converges instead of tripping reuse.
	retry, err := env.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("grace retry failed: %v", err)
	}

	// The retry's token is the live current.
	if _, err := env.svc.Refresh(ctx, retry.RefreshToken); err != nil {
		t.Fatalf("refresh with retry token failed: %v", err)
	}

	// The first response's token was abandoned when the retry replaced
	// it; nobody holds it, and presenting it reads as reuse.
	if _, err := env.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("abandoned token: got %v, want ErrInvalidToken", err)
	}
}

func TestRefreshReuseWipesLineage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	second, err := env.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	third, err := env.svc.Refresh(ctx, second.RefreshToken)
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	// The original token is two generations stale: outside any grace
	// window reach, so presenting it is reuse.
	if _, err := env.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused token: got %v, want ErrInvalidToken", err)
	}

	// Reuse destroys the whole lineage, including the newest token.
	if _, err := env.svc.Refresh(ctx, third.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("post-wipe token: got %v, want ErrInvalidToken", err)
	}

	// Recovery requires a full login.
	result, err := env.svc.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("recovery login failed: %v", err)
	}
	if _, err := env.svc.Refresh(ctx, result.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh after recovery failed: %v", err)
	}
}

func TestRefreshVanishedPrincipal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	env.dir.delete(id)

	if _, err := env.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestRefreshConcurrentClients(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	// Two tabs refresh the same token at once. Both must succeed: one as
	// the rotation, one as a grace-window retry; neither trips reuse.
	const clients = 2
	var wg sync.WaitGroup
	errs := make([]error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("client %d failed: %v", i, err)
		}
	}
}
