// Command mangrove runs the Mangrove Watch web server.
//
// Configuration comes from the environment and an optional .env file; see
// mangrove.LoadConfig for the variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mangrovewatch/mangrove"
	"github.com/mangrovewatch/mangrove/mail"
	"github.com/mangrovewatch/mangrove/profile"
	"github.com/mangrovewatch/mangrove/screens/redisstore"
	"github.com/mangrovewatch/mangrove/storage/memory"
	"github.com/mangrovewatch/mangrove/storage/postgres"
	"github.com/mangrovewatch/mangrove/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mangrove:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := mangrove.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	accounts, profiles, closeStore, err := openAccounts(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := mangrove.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithMailer(mailer).
		WithLogger(logger).
		WithMetricsRegistry(reg).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	handler, err := web.NewServer(web.Options{
		Identity:       engine,
		Profiles:       profiles,
		Reports:        redisstore.New(rdb, cfg.Redis.Prefix),
		Logger:         logger,
		Registry:       reg,
		CookieName:     cfg.Session.CookieName,
		SessionTTL:     cfg.Session.TTL,
		SecureCookies:  cfg.HTTP.SecureCookies,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newLogger(cfg mangrove.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

// openAccounts connects to Postgres. Outside production an empty DSN falls
// back to an in-memory store that is lost on restart.
func openAccounts(ctx context.Context, cfg mangrove.Config, logger *zap.Logger) (mangrove.AccountStore, profile.Store, func(), error) {
	if cfg.Postgres.DSN == "" {
		if cfg.Production() {
			return nil, nil, nil, errors.New("DATABASE_URL is required in production")
		}
		logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		s := memory.New()
		return s, s, func() {}, nil
	}

	pool, err := postgres.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	s := postgres.NewStore(pool)
	return s, s, pool.Close, nil
}

func newMailer(cfg mangrove.Config, logger *zap.Logger) (mail.Mailer, error) {
	if cfg.Mail.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are written to the log")
		return mail.LogMailer{Logger: logger}, nil
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
}
