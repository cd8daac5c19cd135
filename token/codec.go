package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure kinds. Callers outside this package must treat all
// three as the same generic authentication failure toward clients.
var (
	// ErrExpired means the token was well formed and correctly signed but
	// its expiry instant has passed (beyond the configured leeway).
	ErrExpired = errors.New("token expired")
	// ErrBadSignature means the signature did not verify under the secret
	// for the requested kind.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrMalformed covers everything else: wrong structure, wrong claim
	// schema, wrong use claim, wrong algorithm.
	ErrMalformed = errors.New("token malformed")
)

const (
	useAccess  = "access"
	useRefresh = "refresh"

	minSecretLen = 32
)

// Config holds codec construction parameters. The two secrets must differ
// and each must be at least 32 bytes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Leeway is the clock-skew tolerance applied at verification time.
	// Defaults to zero.
	Leeway time.Duration
}

// Codec issues and verifies both token kinds. Immutable after New.
type Codec struct {
	cfg Config
	now func() time.Time
}

// AccessClaims is the access-token claim schema. Subject carries the
// principal id. Status is an advisory snapshot of the organization's
// verification status at issuance time; authorization decisions never rely
// on it (the middleware re-checks live state).
type AccessClaims struct {
	Use    string `json:"use"`
	Role   string `json:"rol"`
	Status string `json:"ost,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token claim schema. Deliberately minimal,
// to limit blast radius if a token leaks: the subject id plus a unique id
// per issuance.
type RefreshClaims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

// New validates the configuration and returns a ready Codec.
func New(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < minSecretLen || len(cfg.RefreshSecret) < minSecretLen {
		return nil, errors.New("token secrets must be at least 32 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{cfg: cfg, now: time.Now}, nil
}

// IssueAccess signs an access token for the subject. statusSnapshot may be
// empty when the subject has no affiliated organization.
func (c *Codec) IssueAccess(subjectID, role, statusSnapshot string) (string, time.Time, error) {
	if subjectID == "" || role == "" {
		return "", time.Time{}, errors.New("subject and role required")
	}

	now := c.now()
	expiresAt := now.Add(c.cfg.AccessTTL)

	claims := AccessClaims{
		Use:    useAccess,
		Role:   role,
		Status: statusSnapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefresh signs a refresh token carrying only the subject id.
func (c *Codec) IssueRefresh(subjectID string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject required")
	}

	now := c.now()
	expiresAt := now.Add(c.cfg.RefreshTTL)

	claims := RefreshClaims{
		Use: useRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps every issuance distinct. Timestamps alone
			// cannot: they encode with whole-second precision, and the
			// rotation store tells tokens apart by digest.
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess parses and validates an access token against the access
// secret and schema.
func (c *Codec) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.verify(tokenStr, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Use != useAccess || claims.Subject == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: wrong claim schema", ErrMalformed)
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token against the refresh
// secret and schema.
func (c *Codec) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.verify(tokenStr, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Use != useRefresh || claims.Subject == "" {
		return nil, fmt.Errorf("%w: wrong claim schema", ErrMalformed)
	}
	return claims, nil
}

func (c *Codec) verify(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.cfg.Leeway))
	}
	if c.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.cfg.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrBadSignature
		default:
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if !tok.Valid {
		return ErrMalformed
	}
	return nil
}
