package authcore

import (
	"errors"
	"time"
)

// Config is the full configuration tree for a [Service]. Obtain a baseline
// from [DefaultConfig] and override what differs; [Builder.Build] validates
// the result.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	OTP      OTPConfig
	Refresh  RefreshConfig
	Limits   LimitsConfig
	Audit    AuditConfig

	// CollaboratorTimeout bounds every external collaborator call
	// (directory, organizations, code delivery). On expiry the call fails
	// with ErrCollaboratorUnavailable.
	CollaboratorTimeout time.Duration
}

// TokenConfig configures the token codec. The two secrets are mandatory,
// must differ, and are configuration, never hardcoded.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Leeway is the clock-skew tolerance at verification time. Default 0.
	Leeway time.Duration
}

// PasswordConfig is the argon2id work factor. One parameter set for every
// call site; defaults mirror credential.DefaultParams.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// OTPConfig configures one-time-code issuance.
type OTPConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	RedisPrefix string
}

// RefreshConfig configures the refresh-token store.
type RefreshConfig struct {
	RedisPrefix string
	// GraceWindow is how long a just-demoted refresh token is still
	// honored as a client retry after rotation.
	GraceWindow time.Duration
}

// LimitRule is one sliding-window budget: at most Limit attempts per
// Window.
type LimitRule struct {
	Limit  int
	Window time.Duration
}

// LimitsConfig assigns a budget to each sensitive entry point. Keys are
// purpose-plus-identifier; with EnableIPThrottle the caller IP from
// [WithClientIP] is throttled in parallel under the same budgets.
type LimitsConfig struct {
	Login         LimitRule
	Register      LimitRule
	VerifyCode    LimitRule
	ResendCode    LimitRule
	PasswordReset LimitRule
	Refresh       LimitRule

	EnableIPThrottle bool
	// SweepInterval is how often stale limiter keys are swept. Zero
	// disables the sweeper; pruning then happens only lazily.
	SweepInterval time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// saturated; the drop count is observable via [Service.AuditDropped].
	DropIfFull bool
}

// DefaultConfig returns the documented defaults. Token secrets are left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "authcore",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		OTP: OTPConfig{
			Digits:      6,
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "ac:otp",
		},
		Refresh: RefreshConfig{
			RedisPrefix: "ac:rt",
			GraceWindow: 2 * time.Minute,
		},
		Limits: LimitsConfig{
			Login:         LimitRule{Limit: 5, Window: 5 * time.Minute},
			Register:      LimitRule{Limit: 3, Window: time.Hour},
			VerifyCode:    LimitRule{Limit: 5, Window: 10 * time.Minute},
			ResendCode:    LimitRule{Limit: 3, Window: 10 * time.Minute},
			PasswordReset: LimitRule{Limit: 3, Window: 15 * time.Minute},
			Refresh:       LimitRule{Limit: 30, Window: time.Minute},
			SweepInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		CollaboratorTimeout: 3 * time.Second,
	}
}

func validateConfig(cfg Config) error {
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 {
		return errors.New("authcore: token TTLs must be positive")
	}
	if cfg.Token.RefreshTTL <= cfg.Token.AccessTTL {
		return errors.New("authcore: refresh TTL must exceed access TTL")
	}
	if cfg.Refresh.GraceWindow <= 0 {
		return errors.New("authcore: rotation grace window must be positive")
	}
	if cfg.Refresh.GraceWindow >= cfg.Token.RefreshTTL {
		return errors.New("authcore: grace window must be shorter than refresh TTL")
	}
	if cfg.OTP.TTL <= 0 || cfg.OTP.Digits < 6 || cfg.OTP.Digits > 10 {
		return errors.New("authcore: invalid OTP configuration")
	}
	if cfg.CollaboratorTimeout <= 0 {
		return errors.New("authcore: collaborator timeout must be positive")
	}
	for _, rule := range []LimitRule{
		cfg.Limits.Login,
		cfg.Limits.Register,
		cfg.Limits.VerifyCode,
		cfg.Limits.ResendCode,
		cfg.Limits.PasswordReset,
		cfg.Limits.Refresh,
	} {
		if rule.Limit <= 0 || rule.Window <= 0 {
			return errors.New("authcore: every limit rule needs a positive limit and window")
		}
	}
	return nil
}
