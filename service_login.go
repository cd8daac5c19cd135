package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/axialab/authcore/otp"
)

// Login exchanges an identifier/secret pair for a fresh token pair.
//
// Any bad combination fails with [ErrInvalidCredentials]; which factor was
// wrong is never disclosed, and unknown identifiers burn a full hash so
// timing does not reveal account existence. A correct secret with an
// unverified email fails with [ErrEmailNotVerified] after issuing a fresh
// verification code as a side effect, replacing any prior code, so the
// caller can prompt for code entry without a second round trip.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if s == nil {
		return nil, ErrNotReady
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("%w: identifier and secret required", ErrValidation)
	}

	if err := s.checkLimit(ctx, "login", identifier, s.cfg.Limits.Login); err != nil {
		return nil, err
	}

	p, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		s.hasher.DummyVerify()
		s.emitAudit(ctx, auditEventLogin, "", false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(secret, p.SecretHash)
	if err != nil || !ok {
		s.emitAudit(ctx, auditEventLogin, p.ID, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if !p.EmailVerified {
		if issueErr := s.issueAndDeliverCode(ctx, p, otp.PurposeEmailVerify); issueErr != nil {
			return nil, issueErr
		}
		s.emitAudit(ctx, auditEventLogin, p.ID, false, ErrEmailNotVerified)
		return nil, ErrEmailNotVerified
	}

	pair, err := s.issuePair(ctx, p)
	if err != nil {
		return nil, err
	}

	s.limiter.Reset("login:" + identifier)
	s.emitAudit(ctx, auditEventLogin, p.ID, true, nil)

	return &LoginResult{
		Tokens: pair,
		Principal: PrincipalSummary{
			ID:            p.ID,
			Identifier:    p.Identifier,
			Role:          p.Role,
			EmailVerified: p.EmailVerified,
		},
	}, nil
}

// Logout invalidates the refresh lineage behind the presented token.
// Best-effort by contract: an unusable or already-invalid token still logs
// the caller out successfully, so Logout never returns an error to the
// caller-visible flow.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if s == nil {
		return
	}

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}

	if err := s.refresh.Invalidate(ctx, claims.Subject); err != nil {
		s.emitAudit(ctx, auditEventLogout, claims.Subject, false, err)
		return
	}
	s.emitAudit(ctx, auditEventLogout, claims.Subject, true, nil)
}
