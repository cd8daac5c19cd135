package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/axialab/authcore/otp"
)

// Registration is the caller input to [Service.Register]. Role is assigned
// by the boundary layer's own policy, never copied from end-client input;
// the zero value is [RoleEndUser].
type Registration struct {
	Identifier string
	Secret     string
	Role       Role
}

// Register creates an unverified principal and issues its first email
// verification code. It never returns tokens: registration alone must not
// authenticate. The only path from created to authenticated is
// [Service.VerifyEmail].
func (s *Service) Register(ctx context.Context, reg Registration) (string, error) {
	if s == nil {
		return "", ErrNotReady
	}

	reg.Identifier = strings.ToLower(strings.TrimSpace(reg.Identifier))
	if reg.Identifier == "" || !strings.Contains(reg.Identifier, "@") {
		return "", fmt.Errorf("%w: valid email identifier required", ErrValidation)
	}
	if len(reg.Secret) < 10 {
		return "", fmt.Errorf("%w: secret must be at least 10 bytes", ErrValidation)
	}
	switch reg.Role {
	case RoleEndUser, RoleOrgAdmin, RoleSystemAdmin:
	default:
		return "", fmt.Errorf("%w: unknown role", ErrValidation)
	}

	if err := s.checkLimit(ctx, "register", reg.Identifier, s.cfg.Limits.Register); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(reg.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cctx, cancel := s.collabCtx(ctx)
	id, err := s.directory.Create(cctx, NewPrincipal{
		Identifier: reg.Identifier,
		SecretHash: hash,
		Role:       reg.Role,
	})
	cancel()
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return "", err
		}
		return "", mapCollabErr(err)
	}

	s.emitAudit(ctx, auditEventRegister, id, true, nil)

	pending := &Principal{ID: id, Identifier: reg.Identifier, Role: reg.Role}
	if err := s.issueAndDeliverCode(ctx, pending, otp.PurposeEmailVerify); err != nil {
		return "", err
	}

	return id, nil
}

// VerifyEmail consumes an email verification code and, on success, flips
// the directory's verification flag and performs the subject's first token
// issuance.
//
// A wrong code fails with [ErrCodeMismatch] and does not consume the stored
// code, so the user may retry within its expiry and attempt budget.
func (s *Service) VerifyEmail(ctx context.Context, identifier, code string) (*TokenPair, error) {
	if s == nil {
		return nil, ErrNotReady
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || code == "" {
		return nil, fmt.Errorf("%w: identifier and code required", ErrValidation)
	}

	if err := s.checkLimit(ctx, "verify_email", identifier, s.cfg.Limits.VerifyCode); err != nil {
		return nil, err
	}

	p, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoActiveCode
	}

	if err := s.codes.Verify(ctx, p.ID, otp.PurposeEmailVerify, code); err != nil {
		mapped := mapOTPError(err)
		s.emitAudit(ctx, auditEventCodeVerify, p.ID, false, mapped)
		return nil, mapped
	}
	s.emitAudit(ctx, auditEventCodeVerify, p.ID, true, nil)

	cctx, cancel := s.collabCtx(ctx)
	err = s.directory.SetEmailVerified(cctx, p.ID)
	cancel()
	if err != nil {
		return nil, mapCollabErr(err)
	}
	p.EmailVerified = true

	pair, err := s.issuePair(ctx, p)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// ResendCode reissues the active-purpose code for the identifier,
// invalidating any prior one. The acknowledgment is identical whether or
// not the identifier exists.
func (s *Service) ResendCode(ctx context.Context, identifier string, purpose otp.Purpose) error {
	if s == nil {
		return ErrNotReady
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return fmt.Errorf("%w: identifier required", ErrValidation)
	}

	if err := s.checkLimit(ctx, "resend_code", identifier, s.cfg.Limits.ResendCode); err != nil {
		return err
	}

	p, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	return s.issueAndDeliverCode(ctx, p, purpose)
}

// NewSubjectID mints an opaque subject identifier. Directory
// implementations that do not bring their own ID scheme can use it from
// Create.
func NewSubjectID() string {
	return uuid.NewString()
}
