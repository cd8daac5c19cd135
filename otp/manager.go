package otp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axialab/authcore/credential"
)

// Purpose names what a code proves. Codes issued for one purpose never
// verify under another.
type Purpose uint8

const (
	// PurposeEmailVerify proves ownership of the registration email.
	PurposeEmailVerify Purpose = iota
	// PurposePasswordReset authorizes replacing the account secret.
	PurposePasswordReset
)

func (p Purpose) String() string {
	switch p {
	case PurposeEmailVerify:
		return "email_verify"
	case PurposePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

var (
	// ErrNoActiveCode means nothing is stored for the pair (never issued,
	// already consumed, or long expired).
	ErrNoActiveCode = errors.New("otp: no active code")
	// ErrExpired means the stored code's expiry instant has passed.
	ErrExpired = errors.New("otp: code expired")
	// ErrMismatch means the candidate did not match. The stored code
	// survives for further attempts within expiry and the attempt budget.
	ErrMismatch = errors.New("otp: code mismatch")
	// ErrTooManyAttempts means the failed-attempt budget is spent and the
	// code has been destroyed.
	ErrTooManyAttempts = errors.New("otp: attempts exceeded")
	// ErrUnavailable covers Redis transport failures.
	ErrUnavailable = errors.New("otp: store unavailable")
)

// expiredRetention keeps the record past its logical expiry
// so verification can answer "expired" instead of "no active code" for a
// while. The embedded expiry, not the key TTL, is authoritative.
const expiredRetention = time.Hour

// Config tunes the manager. Zero values take the documented defaults.
type Config struct {
	Digits      int           // code length, default 6
	TTL         time.Duration // code lifetime, default 10 minutes
	MaxAttempts int           // failed verifies before self-destruct, default 5
	Prefix      string        // Redis key prefix, default "ac:otp"
}

func (c Config) withDefaults() Config {
	if c.Digits == 0 {
		c.Digits = 6
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.Prefix == "" {
		c.Prefix = "ac:otp"
	}
	return c
}

// consumeLua atomically performs the lookup→expiry-check→compare→
// consume-or-count transition.
// KEYS[1] = record key
// ARGV[1] = hex sha256 of the candidate
// ARGV[2] = current unix timestamp
// ARGV[3] = max failed attempts
var consumeLua = redis.NewScript(`
local stored = redis.call('HGET', KEYS[1], 'h')
if not stored then
  return {err='no_active_code'}
end

local expiresAt = tonumber(redis.call('HGET', KEYS[1], 'exp') or '0')
if tonumber(ARGV[2]) > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

if stored ~= ARGV[1] then
  local attempts = redis.call('HINCRBY', KEYS[1], 'att', 1)
  if attempts >= tonumber(ARGV[3]) then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  return {err='mismatch'}
end

redis.call('DEL', KEYS[1])
return stored
`)

// Manager issues and verifies codes against a Redis-backed store.
type Manager struct {
	redis redis.UniversalClient
	cfg   Config
	now   func() time.Time
}

// NewManager returns a Manager using the given Redis client.
func NewManager(client redis.UniversalClient, cfg Config) *Manager {
	return &Manager{
		redis: client,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

func (m *Manager) key(subjectID string, purpose Purpose) string {
	return m.cfg.Prefix + ":" + purpose.String() + ":" + subjectID
}

// Issue generates a fresh code for the pair, stores its digest and expiry,
// and returns the plaintext exactly once. Any prior unconsumed code for the
// same pair is replaced.
func (m *Manager) Issue(ctx context.Context, subjectID string, purpose Purpose) (string, error) {
	if subjectID == "" {
		return "", errors.New("otp: subject required")
	}

	code, err := GenerateCode(m.cfg.Digits)
	if err != nil {
		return "", err
	}

	digest := credential.HashFast(code)
	expiresAt := m.now().Add(m.cfg.TTL)
	key := m.key(subjectID, purpose)

	pipe := m.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"h", hex.EncodeToString(digest[:]),
		"exp", expiresAt.Unix(),
		"att", 0,
	)
	pipe.Expire(ctx, key, m.cfg.TTL+expiredRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return code, nil
}

// Verify consumes the pair's active code if the candidate matches. A
// mismatch does not consume the code but counts against the attempt budget.
func (m *Manager) Verify(ctx context.Context, subjectID string, purpose Purpose, candidate string) error {
	if subjectID == "" || candidate == "" {
		return ErrMismatch
	}

	digest := credential.HashFast(candidate)

	result, err := consumeLua.Run(ctx, m.redis,
		[]string{m.key(subjectID, purpose)},
		hex.EncodeToString(digest[:]),
		m.now().Unix(),
		m.cfg.MaxAttempts,
	).Result()
	if err != nil {
		switch err.Error() {
		case "no_active_code":
			return ErrNoActiveCode
		case "expired":
			return ErrExpired
		case "mismatch":
			return ErrMismatch
		case "attempts_exceeded":
			return ErrTooManyAttempts
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	stored, ok := result.(string)
	if !ok {
		return fmt.Errorf("%w: unexpected lua result type", ErrUnavailable)
	}

	// Final constant-time comparison in Go as defense-in-depth
	// (Lua already matched, but Lua string comparison is not constant-time).
	storedDigest, decErr := hex.DecodeString(stored)
	if decErr != nil || len(storedDigest) != len(digest) {
		return fmt.Errorf("%w: corrupt record", ErrUnavailable)
	}
	var storedArr [32]byte
	copy(storedArr[:], storedDigest)
	if !credential.Equal(storedArr, digest) {
		return ErrMismatch
	}

	return nil
}

// Invalidate discards any active code for the pair. Idempotent.
func (m *Manager) Invalidate(ctx context.Context, subjectID string, purpose Purpose) error {
	if err := m.redis.Del(ctx, m.key(subjectID, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GenerateCode draws a fixed-length numeric code from crypto/rand.
func GenerateCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("otp: invalid code length")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
