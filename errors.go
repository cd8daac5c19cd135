package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Taxonomy roots. Every error returned by [Service] and the middleware
// wraps exactly one of these; boundary layers match with [errors.Is] and
// map to their transport's status codes (400, 401, 403, 409, 429, 404).
var (
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("authcore: validation failed")
	// ErrAuthentication marks bad credentials or tokens. Deliberately
	// generic: it never reveals which factor was wrong, nor whether a
	// token is expired, revoked, or was never issued.
	ErrAuthentication = errors.New("authcore: authentication failed")
	// ErrAuthorization marks a role or status denial. The caller is
	// already authenticated, so the specific denial reason may be exposed.
	ErrAuthorization = errors.New("authcore: authorization denied")
	// ErrConflict marks a duplicate-identifier style collision.
	ErrConflict = errors.New("authcore: conflict")
	// ErrRateLimited marks a throttled request. The concrete
	// [RateLimitError] carries the retry hint.
	ErrRateLimited = errors.New("authcore: rate limited")
	// ErrNotFound is used only for non-security-sensitive lookups.
	ErrNotFound = errors.New("authcore: not found")
)

var (
	// ErrInvalidCredentials is the single login failure for any bad
	// identifier/secret combination.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	// ErrInvalidToken is the single failure for any unusable access or
	// refresh token, including detected refresh reuse.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrAuthentication)
	// ErrEmailNotVerified is returned by Login when the secret was correct
	// but the email is unverified. A fresh verification code has already
	// been issued as a side effect when this error is returned.
	ErrEmailNotVerified = fmt.Errorf("%w: email not verified", ErrAuthorization)

	// ErrNoActiveCode means no unconsumed code exists for the
	// (subject, purpose) pair.
	ErrNoActiveCode = fmt.Errorf("%w: no active code", ErrAuthentication)
	// ErrCodeExpired means the code existed but its expiry has passed.
	ErrCodeExpired = fmt.Errorf("%w: code expired", ErrAuthentication)
	// ErrCodeMismatch means the candidate did not match; the stored code
	// survives for retries within its expiry and attempt budget.
	ErrCodeMismatch = fmt.Errorf("%w: code mismatch", ErrAuthentication)

	// ErrRoleDenied means the token's role is not the one the route
	// requires.
	ErrRoleDenied = fmt.Errorf("%w: role not permitted", ErrAuthorization)
	// ErrOrgPending means the organization is awaiting verification.
	ErrOrgPending = fmt.Errorf("%w: organization awaiting verification", ErrAuthorization)
	// ErrOrgRejected means the organization failed verification. The
	// middleware wraps it with the stored rejection reason.
	ErrOrgRejected = fmt.Errorf("%w: organization rejected", ErrAuthorization)

	// ErrDuplicateIdentifier must be returned by [Directory.Create] when
	// the identifier is already registered.
	ErrDuplicateIdentifier = fmt.Errorf("%w: identifier already registered", ErrConflict)

	// ErrCollaboratorUnavailable covers timeouts and transport failures of
	// any external collaborator call.
	ErrCollaboratorUnavailable = errors.New("authcore: collaborator unavailable")

	// ErrNotReady is returned when a Service method is called on a nil or
	// unbuilt Service.
	ErrNotReady = errors.New("authcore: service not ready")
)

// RateLimitError is the concrete error behind [ErrRateLimited] denials.
// RetryAfter is the soonest the caller could be admitted again; boundary
// layers typically surface it as a Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("authcore: rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
