package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/health"

	adminhandler "authguard/internal/admin/handler"
	"authguard/internal/audit"
	auditrepo "authguard/internal/audit/repository"
	"authguard/internal/audit/stream"
	"authguard/internal/authn"
	"authguard/internal/config"
	"authguard/internal/csrf"
	"authguard/internal/db"
	healthhandler "authguard/internal/health/handler"
	identityhandler "authguard/internal/identity/handler"
	"authguard/internal/identity/service"
	"authguard/internal/memstore"
	"authguard/internal/policy/engine"
	"authguard/internal/ratelimit"
	"authguard/internal/security"
	"authguard/internal/server"
	sessionrepo "authguard/internal/session/repository"
	ztotel "authguard/internal/telemetry/otel"
	userrepo "authguard/internal/user/repository"
)

type userStore interface {
	service.UserRepo
	service.TokenRepo
}

type sessionStore interface {
	service.SessionRepo
	authn.SessionStore
	adminhandler.SessionStore
}

// app holds the wired components and everything that needs closing.
type app struct {
	pipeline      *authn.Pipeline
	svc           *service.AuthService
	admin         *adminhandler.Handler
	guard         *csrf.Guard
	auditLogger   *audit.Logger
	pinger        healthhandler.Pinger
	policyChecker healthhandler.PolicyChecker
	closers       []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("shutdown: close failed")
		}
	}
}

func wire(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	providers, err := ztotel.NewProviders(ctx, cfg.OTelEndpoint, cfg.OTelServiceName, cfg.OTelInsecure)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return providers.Shutdown(sctx)
	})

	var (
		users    userStore
		sessions sessionStore
		entries  auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("db: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		a.pinger = conn
		users = userrepo.NewPostgresRepository(conn)
		sessions = sessionrepo.NewPostgresRepository(conn)
		entries = auditrepo.NewPostgresRepository(conn)
	} else {
		log.Warn().Msg("DATABASE_URL not set; using in-memory stores, data is lost on restart")
		users = memstore.NewUsers()
		sessions = memstore.NewSessions()
		entries = memstore.NewAuditLog()
	}

	sinks := audit.Fanout{entries, ztotel.NewAuditSink(providers.LoggerProvider)}
	if k := stream.NewKafkaSink(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic); k != nil {
		sinks = append(sinks, k)
		a.closers = append(a.closers, k.Close)
	}
	a.auditLogger = audit.NewLogger(sinks)

	tokens, err := tokenProvider(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("tokens: %w", err)
	}

	authz, err := engine.NewOPAAuthorizer(ctx, "")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("policy: %w", err)
	}
	a.policyChecker = authz

	limiter := ratelimit.New(ratelimit.WithMeter(otel.Meter("authguard/ratelimit")))
	limiter.StartSweep(ctx, cfg.SweepInterval())

	a.pipeline = authn.NewPipeline(limiter, tokens, sessions, users,
		authn.WithAuthorizer(authz), authn.WithAuditLogger(a.auditLogger))
	a.svc = service.NewAuthService(users, users, sessions, security.NewHasher(cfg.BcryptCost), tokens, a.auditLogger, cfg.SessionTTL())
	a.admin = adminhandler.NewHandler(limiter, sessions, entries, a.auditLogger)

	store, err := csrfStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("csrf: %w", err)
	}
	if c, ok := store.(*csrf.RedisStore); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.guard = csrf.NewGuard(store, cfg.SessionTTL())
	return a, nil
}

func (a *app) httpDeps(cfg *config.Config) server.HTTPDeps {
	return server.HTTPDeps{
		Pipeline: a.pipeline,
		Identity: identityhandler.NewHandler(a.svc, identityhandler.Options{
			CSRF:          a.guard,
			ExposeTokens:  !cfg.IsProduction(),
			SecureCookies: cfg.IsProduction(),
		}),
		Admin:       a.admin,
		Health:      healthhandler.NewChecker(a.pinger, a.policyChecker),
		CSRF:        a.guard,
		CORSOrigins: cfg.CORSOrigins(),
	}
}

func (a *app) grpcDeps(hs *health.Server) server.GRPCDeps {
	return server.GRPCDeps{
		Pipeline: a.pipeline,
		Identity: identityhandler.NewGRPCServer(a.svc),
		Admin:    adminhandler.NewGRPCServer(a.admin),
		Audit:    a.auditLogger,
		Health:   hs,
	}
}

// tokenProvider builds the session token signer. Outside production a missing
// key is replaced by a random HS256 secret that lives as long as the process.
func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	secret := cfg.JWTSecret
	if cfg.JWTPrivateKey == "" && secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(b)
		log.Warn().Msg("no JWT key configured; using an ephemeral secret, sessions end on restart")
	}
	return security.NewTokenProviderFromConfig(cfg.JWTPrivateKey, cfg.JWTPublicKey, secret, cfg.JWTIssuer, cfg.JWTAudience)
}

func csrfStore(ctx context.Context, cfg *config.Config) (csrf.Store, error) {
	if cfg.CSRFStore != "redis" {
		mem := csrf.NewMemoryStore()
		mem.StartSweep(ctx, cfg.SweepInterval())
		return mem, nil
	}
	return csrf.NewRedisStoreFromURL(cfg.RedisURL)
}
