package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/axialab/authcore/otp"
)

// RequestPasswordReset issues a reset code for the identifier. The
// acknowledgment is identical whether or not the identifier exists;
// unknown identifiers burn a full hash so timing does not differ either.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier string) error {
	if s == nil {
		return ErrNotReady
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return fmt.Errorf("%w: identifier required", ErrValidation)
	}

	if err := s.checkLimit(ctx, "password_reset", identifier, s.cfg.Limits.PasswordReset); err != nil {
		return err
	}

	p, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if p == nil {
		s.hasher.DummyVerify()
		s.emitAudit(ctx, auditEventPasswordResetRequest, "", false, nil)
		return nil
	}

	if err := s.issueAndDeliverCode(ctx, p, otp.PurposePasswordReset); err != nil {
		return err
	}

	s.emitAudit(ctx, auditEventPasswordResetRequest, p.ID, true, nil)
	return nil
}

// CompletePasswordReset consumes a reset code, replaces the stored secret
// hash, and invalidates the subject's refresh lineage so every existing
// session must re-authenticate.
func (s *Service) CompletePasswordReset(ctx context.Context, identifier, code, newSecret string) error {
	if s == nil {
		return ErrNotReady
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || code == "" {
		return fmt.Errorf("%w: identifier and code required", ErrValidation)
	}
	if len(newSecret) < 10 {
		return fmt.Errorf("%w: secret must be at least 10 bytes", ErrValidation)
	}

	if err := s.checkLimit(ctx, "reset_verify", identifier, s.cfg.Limits.VerifyCode); err != nil {
		return err
	}

	p, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNoActiveCode
	}

	if err := s.codes.Verify(ctx, p.ID, otp.PurposePasswordReset, code); err != nil {
		mapped := mapOTPError(err)
		s.emitAudit(ctx, auditEventCodeVerify, p.ID, false, mapped)
		return mapped
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cctx, cancel := s.collabCtx(ctx)
	err = s.directory.SetSecretHash(cctx, p.ID, hash)
	cancel()
	if err != nil {
		return mapCollabErr(err)
	}

	if err := s.refresh.Invalidate(ctx, p.ID); err != nil {
		return err
	}

	s.emitAudit(ctx, auditEventPasswordResetComplete, p.ID, true, nil)
	return nil
}
