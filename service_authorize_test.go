package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAuthorizeEndUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	identity, err := env.svc.Authorize(ctx, pair.AccessToken, RoleEndUser)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if identity.SubjectID != id || identity.Role != RoleEndUser {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestAuthorizeWrongRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	for _, required := range []Role{RoleOrgAdmin, RoleSystemAdmin} {
		if _, err := env.svc.Authorize(ctx, pair.AccessToken, required); !errors.Is(err, ErrRoleDenied) {
			t.Fatalf("required %v: got %v, want ErrRoleDenied", required, err)
		}
	}
}

func TestAuthorizeBadToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "alice@example.com", "correct horse battery", RoleEndUser)

	if _, err := env.svc.Authorize(ctx, "garbage", RoleEndUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v, want ErrInvalidToken", err)
	}

	// A refresh token is not an access token.
	if _, err := env.svc.Authorize(ctx, pair.RefreshToken, RoleEndUser); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token: got %v, want ErrInvalidToken", err)
	}
}

func TestAuthorizeOrgAdminGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.orgs.set(&OrganizationState{Status: StatusPending})
	_, pair := env.registerVerified(t, "admin@example.com", "correct horse battery", RoleOrgAdmin)

	if _, err := env.svc.Authorize(ctx, pair.AccessToken, RoleOrgAdmin); !errors.Is(err, ErrOrgPending) {
		t.Fatalf("pending org: got %v, want ErrOrgPending", err)
	}

	// Status is fetched live: a flip takes effect on the next call with
	// the same token.
	env.orgs.set(&OrganizationState{Status: StatusVerified})
	identity, err := env.svc.Authorize(ctx, pair.AccessToken, RoleOrgAdmin)
	if err != nil {
		t.Fatalf("verified org: %v", err)
	}
	if identity.OrgStatus != StatusVerified {
		t.Fatalf("OrgStatus = %v, want StatusVerified", identity.OrgStatus)
	}

	// And back again, without new tokens.
	env.orgs.set(&OrganizationState{Status: StatusRejected, RejectionReason: "incomplete paperwork"})
	_, err = env.svc.Authorize(ctx, pair.AccessToken, RoleOrgAdmin)
	if !errors.Is(err, ErrOrgRejected) {
		t.Fatalf("rejected org: got %v, want ErrOrgRejected", err)
	}
	if !strings.Contains(err.Error(), "incomplete paperwork") {
		t.Fatalf("rejection reason missing from %v", err)
	}
}

func TestAuthorizeOrgAdminWithoutOrgRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No organization on file reads as pending, never as a pass.
	_, pair := env.registerVerified(t, "admin@example.com", "correct horse battery", RoleOrgAdmin)

	if _, err := env.svc.Authorize(ctx, pair.AccessToken, RoleOrgAdmin); !errors.Is(err, ErrOrgPending) {
		t.Fatalf("got %v, want ErrOrgPending", err)
	}
}

func TestAuthorizeStatusDoesNotGateOtherRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A rejected organization answer is irrelevant to non-org-admin roles.
	env.orgs.set(&OrganizationState{Status: StatusRejected})
	_, pair := env.registerVerified(t, "root@example.com", "correct horse battery", RoleSystemAdmin)

	if _, err := env.svc.Authorize(ctx, pair.AccessToken, RoleSystemAdmin); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
}

func TestAuthorizeCollaboratorFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, pair := env.registerVerified(t, "admin@example.com", "correct horse battery", RoleOrgAdmin)

	env.orgs.err = errors.New("backend down")
	if _, err := env.svc.Authorize(ctx, pair.AccessToken, RoleOrgAdmin); !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("got %v, want ErrCollaboratorUnavailable", err)
	}
}
