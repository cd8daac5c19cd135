package authcore

import (
	"context"
	"time"

	"github.com/axialab/authcore/otp"
)

// Role is the closed set of platform roles. A principal's role is fixed at
// creation and is never re-derived from client input; every role-dependent
// branch in this module is an exhaustive switch over this type.
type Role uint8

const (
	// RoleEndUser is a regular platform user.
	RoleEndUser Role = iota
	// RoleOrgAdmin administers an affiliated organization. Requests made
	// under this role are additionally gated by the organization's live
	// verification status.
	RoleOrgAdmin
	// RoleSystemAdmin administers the platform itself.
	RoleSystemAdmin
)

// String returns the stable wire name of the role. The same names are used
// inside access-token claims; see roleFromClaim.
func (r Role) String() string {
	switch r {
	case RoleEndUser:
		return "end_user"
	case RoleOrgAdmin:
		return "org_admin"
	case RoleSystemAdmin:
		return "system_admin"
	default:
		return "unknown"
	}
}

// roleFromClaim maps a claim value back onto the enum. Fails closed: any
// value outside the closed set is rejected.
func roleFromClaim(value string) (Role, bool) {
	switch value {
	case "end_user":
		return RoleEndUser, true
	case "org_admin":
		return RoleOrgAdmin, true
	case "system_admin":
		return RoleSystemAdmin, true
	default:
		return 0, false
	}
}

// VerificationStatus is the tri-state approval state of an affiliated
// organization. It is owned by the external organization collaborator and
// only ever read by this module.
type VerificationStatus uint8

const (
	// StatusPending means the organization has not yet been reviewed.
	StatusPending VerificationStatus = iota
	// StatusVerified means the organization passed review.
	StatusVerified
	// StatusRejected means the organization failed review.
	StatusRejected
)

func (s VerificationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Principal is the minimal user record the core reads from the external
// directory. The directory owns the record; the core only reads it and asks
// the directory to flip the verification flag or replace the secret hash.
type Principal struct {
	ID            string
	Identifier    string
	SecretHash    string
	Role          Role
	EmailVerified bool
}

// PrincipalSummary is the caller-safe projection of a principal returned by
// [Service.Login]. It never carries the secret hash.
type PrincipalSummary struct {
	ID            string
	Identifier    string
	Role          Role
	EmailVerified bool
}

// NewPrincipal is the draft handed to [Directory.Create] during
// registration. The secret arrives already hashed.
type NewPrincipal struct {
	Identifier string
	SecretHash string
	Role       Role
}

// TokenPair carries one issued access/refresh pair with expiry instants.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is returned by a successful [Service.Login].
type LoginResult struct {
	Tokens    TokenPair
	Principal PrincipalSummary
}

// Identity is the outcome of a successful [Service.Authorize] call. For
// organization-admin requests OrgStatus carries the freshly fetched
// verification status so downstream handlers can reuse it without a second
// collaborator round trip.
type Identity struct {
	SubjectID string
	Role      Role
	OrgStatus VerificationStatus
}

// OrganizationState is the organization collaborator's answer for a
// principal. RejectionReason is only meaningful when Status is
// [StatusRejected].
type OrganizationState struct {
	Status          VerificationStatus
	RejectionReason string
}

// Directory is the external principal-record collaborator. Implementations
// back it with whatever storage the host application uses.
//
// Lookup methods return (nil, nil) when no principal matches; Create must
// return [ErrDuplicateIdentifier] when the identifier is already taken.
// Calls may be slow I/O: the core wraps every call with
// [Config.CollaboratorTimeout] and never holds an internal lock across one.
type Directory interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Principal, error)
	FindByID(ctx context.Context, id string) (*Principal, error)
	Create(ctx context.Context, draft NewPrincipal) (id string, err error)
	SetEmailVerified(ctx context.Context, id string) error
	SetSecretHash(ctx context.Context, id, hash string) error
}

// OrganizationDirectory resolves the live verification status of the
// organization a principal administers. Returns (nil, nil) when the
// principal has no affiliated organization.
type OrganizationDirectory interface {
	FindOrganizationStatus(ctx context.Context, principalID string) (*OrganizationState, error)
}

// CodeDeliverer transports a plaintext one-time code to its owner over
// whatever channel the host uses. It is the only collaborator that ever
// sees the plaintext.
type CodeDeliverer interface {
	DeliverCode(ctx context.Context, destination string, purpose otp.Purpose, code string) error
}

type noopDeliverer struct{}

func (noopDeliverer) DeliverCode(context.Context, string, otp.Purpose, string) error { return nil }
