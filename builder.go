package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/axialab/authcore/credential"
	internalaudit "github.com/axialab/authcore/internal/audit"
	"github.com/axialab/authcore/otp"
	"github.com/axialab/authcore/rate"
	"github.com/axialab/authcore/refreshstore"
	"github.com/axialab/authcore/token"
)

// Builder assembles a [Service]. Construction is allocation-only until
// Build; no I/O happens before the first Service call.
type Builder struct {
	cfg           Config
	redis         redis.UniversalClient
	directory     Directory
	organizations OrganizationDirectory
	deliverer     CodeDeliverer
	auditSink     AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithConfig replaces the entire configuration tree.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRedis supplies the Redis client backing the OTP and refresh stores.
// Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory supplies the principal-record collaborator. Required.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithOrganizations supplies the organization-status collaborator.
// Required only when [Service.Authorize] is used for [RoleOrgAdmin]
// routes.
func (b *Builder) WithOrganizations(o OrganizationDirectory) *Builder {
	b.organizations = o
	return b
}

// WithDeliverer supplies the code-delivery collaborator. Defaults to a
// no-op that silently discards codes, which is fine for tests and wrong
// for production.
func (b *Builder) WithDeliverer(d CodeDeliverer) *Builder {
	b.deliverer = d
	return b
}

// WithAuditSink supplies the audit sink. Events are only dispatched when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the Service. A Builder may
// build at most once.
func (b *Builder) Build() (*Service, error) {
	if b == nil {
		return nil, ErrNotReady
	}
	if b.built {
		return nil, errors.New("authcore: builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("authcore: redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("authcore: directory collaborator required")
	}
	if err := validateConfig(b.cfg); err != nil {
		return nil, err
	}

	codec, err := token.New(token.Config{
		AccessSecret:  b.cfg.Token.AccessSecret,
		RefreshSecret: b.cfg.Token.RefreshSecret,
		AccessTTL:     b.cfg.Token.AccessTTL,
		RefreshTTL:    b.cfg.Token.RefreshTTL,
		Issuer:        b.cfg.Token.Issuer,
		Leeway:        b.cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := credential.NewHasher(credential.Params{
		Memory:      b.cfg.Password.Memory,
		Time:        b.cfg.Password.Time,
		Parallelism: b.cfg.Password.Parallelism,
		SaltLength:  b.cfg.Password.SaltLength,
		KeyLength:   b.cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	deliverer := b.deliverer
	if deliverer == nil {
		deliverer = noopDeliverer{}
	}

	var dispatcher *internalaudit.Dispatcher
	if b.cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		dispatcher = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    true,
			BufferSize: b.cfg.Audit.BufferSize,
			DropIfFull: b.cfg.Audit.DropIfFull,
		}, sinkAdapter{sink: sink})
	}

	b.built = true

	return &Service{
		cfg:    b.cfg,
		codec:  codec,
		hasher: hasher,
		codes: otp.NewManager(b.redis, otp.Config{
			Digits:      b.cfg.OTP.Digits,
			TTL:         b.cfg.OTP.TTL,
			MaxAttempts: b.cfg.OTP.MaxAttempts,
			Prefix:      b.cfg.OTP.RedisPrefix,
		}),
		refresh: refreshstore.New(b.redis, refreshstore.Config{
			Prefix:      b.cfg.Refresh.RedisPrefix,
			GraceWindow: b.cfg.Refresh.GraceWindow,
		}),
		limiter:       rate.NewLimiter(b.cfg.Limits.SweepInterval),
		directory:     b.directory,
		organizations: b.organizations,
		deliverer:     deliverer,
		audit:         dispatcher,
	}, nil
}
