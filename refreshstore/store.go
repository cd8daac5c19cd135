package refreshstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means no refresh state exists for the subject.
	ErrNotFound = errors.New("refreshstore: no refresh state")
	// ErrReuseDetected means the presented digest matched neither current
	// nor a grace-window previous. The subject's refresh state has already
	// been wiped when this is returned.
	ErrReuseDetected = errors.New("refreshstore: token reuse detected")
	// ErrUnavailable covers Redis transport failures.
	ErrUnavailable = errors.New("refreshstore: store unavailable")
)

// Outcome reports which rotation path the script took.
type Outcome int

const (
	// OutcomeRotated is a genuine rotation: current was demoted to
	// previous and the grace window restarted.
	OutcomeRotated Outcome = iota
	// OutcomeReplayed is a grace-window retry: current was replaced in
	// place without opening a new window.
	OutcomeReplayed
)

// Config tunes the store. Zero values take the documented defaults.
type Config struct {
	Prefix string // Redis key prefix, default "ac:rt"
	// GraceWindow is how long after a genuine rotation the demoted token
	// is still accepted as a retry. Default 2 minutes.
	GraceWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "ac:rt"
	}
	if c.GraceWindow == 0 {
		c.GraceWindow = 2 * time.Minute
	}
	return c
}

// rotateLua implements the rotation decision table atomically.
// KEYS[1] = record key
// ARGV[1] = presented digest (hex)
// ARGV[2] = next digest (hex)
// ARGV[3] = current unix timestamp
// ARGV[4] = grace window in seconds
// ARGV[5] = record TTL in seconds
var rotateLua = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'cur')
if not cur then
  return {err='not_found'}
end

local provided = ARGV[1]
local incoming = ARGV[2]
local now = tonumber(ARGV[3])
local grace = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

if provided == cur then
  redis.call('HSET', KEYS[1], 'prev', cur, 'cur', incoming, 'rot', now)
  redis.call('EXPIRE', KEYS[1], ttl)
  return 'rotated'
end

local prev = redis.call('HGET', KEYS[1], 'prev')
local rot = tonumber(redis.call('HGET', KEYS[1], 'rot') or '0')
if prev and provided == prev and (now - rot) <= grace then
  redis.call('HSET', KEYS[1], 'cur', incoming)
  return 'replayed'
end

redis.call('DEL', KEYS[1])
return {err='reuse'}
`)

// Store keeps one current/previous digest pair per subject in Redis.
type Store struct {
	redis redis.UniversalClient
	cfg   Config
	now   func() time.Time
}

// New returns a Store using the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Store {
	return &Store{
		redis: client,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

func (s *Store) key(subjectID string) string {
	return s.cfg.Prefix + ":" + subjectID
}

// Save records a fresh lineage for the subject after login or first
// issuance. Any prior state, including the previous slot, is discarded.
func (s *Store) Save(ctx context.Context, subjectID string, digest [32]byte, ttl time.Duration) error {
	if subjectID == "" {
		return errors.New("refreshstore: subject required")
	}

	key := s.key(subjectID)
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"cur", hex.EncodeToString(digest[:]),
		"rot", s.now().Unix(),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Rotate applies the decision table for one presented digest. On
// ErrReuseDetected the subject's entire refresh state has already been
// invalidated as a side effect.
func (s *Store) Rotate(ctx context.Context, subjectID string, presented, next [32]byte, ttl time.Duration) (Outcome, error) {
	result, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(subjectID)},
		hex.EncodeToString(presented[:]),
		hex.EncodeToString(next[:]),
		s.now().Unix(),
		int64(s.cfg.GraceWindow/time.Second),
		int64(ttl/time.Second),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return 0, ErrNotFound
		case "reuse":
			return 0, ErrReuseDetected
		default:
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	switch result {
	case "rotated":
		return OutcomeRotated, nil
	case "replayed":
		return OutcomeReplayed, nil
	default:
		return 0, fmt.Errorf("%w: unexpected lua result %v", ErrUnavailable, result)
	}
}

// Invalidate destroys all refresh state for the subject. Idempotent; used
// by logout, password reset, and reuse handling.
func (s *Store) Invalidate(ctx context.Context, subjectID string) error {
	if err := s.redis.Del(ctx, s.key(subjectID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
