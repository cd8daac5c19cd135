package authcore

import (
	"context"
	"fmt"
)

// Authorize validates an access token against a required role and, for
// [RoleOrgAdmin], against the organization's live verification status.
//
// The status is re-fetched from the collaborator on every call instead of
// trusting the snapshot claim inside the token, because status can change
// faster than tokens expire; a flip from VERIFIED to REJECTED takes effect
// on the very next request without new tokens. A role other than the
// required one is always denied regardless of status.
func (s *Service) Authorize(ctx context.Context, accessToken string, required Role) (*Identity, error) {
	if s == nil {
		return nil, ErrNotReady
	}

	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	role, ok := roleFromClaim(claims.Role)
	if !ok {
		return nil, ErrInvalidToken
	}
	if role != required {
		return nil, ErrRoleDenied
	}

	identity := &Identity{SubjectID: claims.Subject, Role: role}

	switch role {
	case RoleEndUser, RoleSystemAdmin:
		return identity, nil
	case RoleOrgAdmin:
		if s.organizations == nil {
			return nil, fmt.Errorf("%w: organization directory not configured", ErrCollaboratorUnavailable)
		}

		state, err := s.orgState(ctx, claims.Subject)
		if err != nil {
			return nil, err
		}
		if state == nil {
			// No affiliated organization on record reads as not yet
			// verified, not as a pass.
			return nil, ErrOrgPending
		}

		switch state.Status {
		case StatusVerified:
			identity.OrgStatus = StatusVerified
			return identity, nil
		case StatusPending:
			return nil, ErrOrgPending
		case StatusRejected:
			if state.RejectionReason != "" {
				return nil, fmt.Errorf("%w: %s", ErrOrgRejected, state.RejectionReason)
			}
			return nil, ErrOrgRejected
		default:
			return nil, ErrOrgPending
		}
	default:
		return nil, ErrRoleDenied
	}
}
