package mangrove

import (
	"errors"
	"time"

	"github.com/mangrovewatch/mangrove/internal/audit"
	"github.com/mangrovewatch/mangrove/internal/limiters"
	"github.com/mangrovewatch/mangrove/internal/stores"
	"github.com/mangrovewatch/mangrove/jwt"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/password"
	"github.com/mangrovewatch/mangrove/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountStore
	mailer   mail.Mailer
	logger   *zap.Logger
	sink     audit.Sink
	registry *prometheus.Registry

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, challenges and throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account persistence layer.
func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

// WithMailer sets the mailer for verification and recovery links. Without
// one, mail is written to the logger.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink overrides the default sink, which logs events through zap.
func (b *Builder) WithAuditSink(s audit.Sink) *Builder {
	b.sink = s
	return b
}

// WithMetricsRegistry registers the engine collectors on reg instead of a
// private registry.
func (b *Builder) WithMetricsRegistry(reg *prometheus.Registry) *Builder {
	b.registry = reg
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = mail.LogMailer{Logger: logger.Named("mail")}
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	dummyHash, err := hasher.Hash("unknown-account-placeholder")
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:   []byte(cfg.JWT.Secret),
		TTL:      cfg.JWT.AccessTTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	metrics, err := newMetrics(b.registry)
	if err != nil {
		return nil, err
	}

	sink := b.sink
	if sink == nil {
		sink = newZapAuditSink(logger.Named("audit"))
	}

	prefix := cfg.Redis.Prefix
	e := &Engine{
		config:     cfg,
		accounts:   b.accounts,
		sessions:   session.NewStore(b.redis, prefix),
		challenges: stores.NewChallengeStore(b.redis, prefix),
		signIn: limiters.NewSignInLimiter(b.redis, prefix, limiters.SignInConfig{
			MaxFailures: cfg.SignIn.MaxFailures,
			Cooldown:    cfg.SignIn.Cooldown,
			PerIP:       cfg.SignIn.PerIP,
		}),
		resendLimiter: limiters.NewEmailLimiter(b.redis, prefix, "resend", limiters.EmailConfig{
			MaxPerWindow: cfg.EmailVerification.ResendPerWindow,
			Window:       cfg.EmailVerification.ResendWindow,
		}),
		recoveryLimiter: limiters.NewEmailLimiter(b.redis, prefix, "recovery", limiters.EmailConfig{
			MaxPerWindow: cfg.PasswordReset.RequestsPerWindow,
			Window:       cfg.PasswordReset.RequestWindow,
		}),
		audit: audit.NewJournal(audit.Config{
			Enabled:       cfg.Audit.Enabled,
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
			DropIfFull:    cfg.Audit.DropIfFull,
		}, sink, audit.RecorderFunc(metrics.auditOutcome)),
		metrics:   metrics,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummyHash,
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}

	b.built = true
	return e, nil
}
