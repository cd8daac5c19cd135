package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/axialab/authcore/credential"
	internalaudit "github.com/axialab/authcore/internal/audit"
	"github.com/axialab/authcore/otp"
	"github.com/axialab/authcore/rate"
	"github.com/axialab/authcore/refreshstore"
	"github.com/axialab/authcore/token"
)

// Service orchestrates login, registration, verification, refresh, logout,
// and password-reset flows over the injected collaborators. Construct with
// [Builder.Build]; all methods are safe for concurrent use afterwards.
type Service struct {
	cfg           Config
	codec         *token.Codec
	hasher        *credential.Hasher
	codes         *otp.Manager
	refresh       *refreshstore.Store
	limiter       *rate.Limiter
	directory     Directory
	organizations OrganizationDirectory
	deliverer     CodeDeliverer
	audit         *internalaudit.Dispatcher
}

// Close stops the audit dispatcher (draining buffered events) and the rate
// limiter sweeper. The Service must not be used afterwards.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// AuditDropped reports how many audit events were discarded under buffer
// pressure.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// collabCtx derives the bounded context used for every collaborator call.
// Internal locks are never held across these calls.
func (s *Service) collabCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CollaboratorTimeout)
}

func mapCollabErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout", ErrCollaboratorUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
}

func (s *Service) findByIdentifier(ctx context.Context, identifier string) (*Principal, error) {
	cctx, cancel := s.collabCtx(ctx)
	defer cancel()

	p, err := s.directory.FindByIdentifier(cctx, identifier)
	if err != nil {
		return nil, mapCollabErr(err)
	}
	return p, nil
}

func (s *Service) findByID(ctx context.Context, id string) (*Principal, error) {
	cctx, cancel := s.collabCtx(ctx)
	defer cancel()

	p, err := s.directory.FindByID(cctx, id)
	if err != nil {
		return nil, mapCollabErr(err)
	}
	return p, nil
}

func (s *Service) deliver(ctx context.Context, destination string, purpose otp.Purpose, code string) error {
	cctx, cancel := s.collabCtx(ctx)
	defer cancel()

	if err := s.deliverer.DeliverCode(cctx, destination, purpose, code); err != nil {
		return mapCollabErr(err)
	}
	return nil
}

func (s *Service) orgState(ctx context.Context, principalID string) (*OrganizationState, error) {
	if s.organizations == nil {
		return nil, nil
	}

	cctx, cancel := s.collabCtx(ctx)
	defer cancel()

	state, err := s.organizations.FindOrganizationStatus(cctx, principalID)
	if err != nil {
		return nil, mapCollabErr(err)
	}
	return state, nil
}

// checkLimit applies one sliding-window rule under "purpose:identity" and,
// when IP throttling is on and an IP is attached to ctx, in parallel under
// "purpose:ip:<addr>". Returns a *RateLimitError on denial.
func (s *Service) checkLimit(ctx context.Context, purpose, identity string, rule LimitRule) error {
	key := purpose + ":" + identity
	if !s.limiter.Allow(key, rule.Limit, rule.Window) {
		s.emitAudit(ctx, auditEventRateLimited, "", false, ErrRateLimited)
		return &RateLimitError{RetryAfter: s.limiter.RetryAfter(key, rule.Limit, rule.Window)}
	}

	if s.cfg.Limits.EnableIPThrottle {
		if ip := clientIPFromContext(ctx); ip != "" {
			ipKey := purpose + ":ip:" + ip
			if !s.limiter.Allow(ipKey, rule.Limit, rule.Window) {
				s.emitAudit(ctx, auditEventRateLimited, "", false, ErrRateLimited)
				return &RateLimitError{RetryAfter: s.limiter.RetryAfter(ipKey, rule.Limit, rule.Window)}
			}
		}
	}

	return nil
}

// issuePair mints a fresh access/refresh pair for the principal and records
// the refresh digest as a brand-new lineage.
func (s *Service) issuePair(ctx context.Context, p *Principal) (TokenPair, error) {
	snapshot := ""
	if p.Role == RoleOrgAdmin {
		// Advisory claim only; authorization always re-checks live state.
		if state, err := s.orgState(ctx, p.ID); err == nil && state != nil {
			snapshot = state.Status.String()
		}
	}

	access, accessExp, err := s.codec.IssueAccess(p.ID, p.Role.String(), snapshot)
	if err != nil {
		return TokenPair{}, err
	}

	refreshTok, refreshExp, err := s.codec.IssueRefresh(p.ID)
	if err != nil {
		return TokenPair{}, err
	}

	digest := credential.HashFast(refreshTok)
	if err := s.refresh.Save(ctx, p.ID, digest, s.cfg.Token.RefreshTTL); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshTok,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// issueAndDeliverCode issues a code for the pair (replacing any active one)
// and hands the plaintext to the delivery collaborator. The plaintext never
// goes anywhere else.
func (s *Service) issueAndDeliverCode(ctx context.Context, p *Principal, purpose otp.Purpose) error {
	code, err := s.codes.Issue(ctx, p.ID, purpose)
	if err != nil {
		s.emitAudit(ctx, auditEventCodeIssue, p.ID, false, err)
		return err
	}
	s.emitAudit(ctx, auditEventCodeIssue, p.ID, true, nil)

	return s.deliver(ctx, p.Identifier, purpose, code)
}

func mapOTPError(err error) error {
	switch {
	case errors.Is(err, otp.ErrNoActiveCode), errors.Is(err, otp.ErrTooManyAttempts):
		// A burned attempt budget presents as no active code: the caller's
		// remedy is the same (request a fresh code).
		return ErrNoActiveCode
	case errors.Is(err, otp.ErrExpired):
		return ErrCodeExpired
	case errors.Is(err, otp.ErrMismatch):
		return ErrCodeMismatch
	default:
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
}
