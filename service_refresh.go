package authcore

import (
	"context"
	"errors"

	"github.com/axialab/authcore/credential"
	"github.com/axialab/authcore/refreshstore"
)

// Refresh rotates a refresh token and mints a new access token.
//
// The rotation protocol is designed for concurrent and retrying clients:
// a token matching the stored current digest rotates normally; a token
// matching the previous digest inside the rotation grace window is treated
// as a retry that never saw the prior response and converges onto the same
// generation instead of minting a third; anything else is reuse of a dead
// token and wipes the subject's entire refresh state. The caller sees only
// the generic [ErrInvalidToken], never which case occurred.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s == nil {
		return nil, ErrNotReady
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	subjectID := claims.Subject

	if err := s.checkLimit(ctx, "refresh", subjectID, s.cfg.Limits.Refresh); err != nil {
		return nil, err
	}

	nextToken, nextExpiresAt, err := s.codec.IssueRefresh(subjectID)
	if err != nil {
		return nil, err
	}

	_, err = s.refresh.Rotate(
		ctx,
		subjectID,
		credential.HashFast(refreshToken),
		credential.HashFast(nextToken),
		s.cfg.Token.RefreshTTL,
	)
	if err != nil {
		switch {
		case errors.Is(err, refreshstore.ErrReuseDetected):
			// The store has already invalidated current+previous; this is
			// a security event, not just a denial.
			s.emitAudit(ctx, auditEventRefreshReuse, subjectID, false, err)
			return nil, ErrInvalidToken
		case errors.Is(err, refreshstore.ErrNotFound):
			return nil, ErrInvalidToken
		default:
			return nil, err
		}
	}

	p, err := s.findByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// Principal vanished between issuance and refresh; kill the
		// lineage rather than mint tokens for a ghost.
		_ = s.refresh.Invalidate(ctx, subjectID)
		return nil, ErrInvalidToken
	}

	snapshot := ""
	if p.Role == RoleOrgAdmin {
		if state, stateErr := s.orgState(ctx, p.ID); stateErr == nil && state != nil {
			snapshot = state.Status.String()
		}
	}

	access, accessExpiresAt, err := s.codec.IssueAccess(p.ID, p.Role.String(), snapshot)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, auditEventRefresh, subjectID, true, nil)

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     nextToken,
		RefreshExpiresAt: nextExpiresAt,
	}, nil
}
