// seed creates the first admin account from SEED_ADMIN_EMAIL, SEED_ADMIN_NAME and
// SEED_ADMIN_PASSWORD. Idempotent: an existing account with that email is left unchanged.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"authguard/internal/config"
	"authguard/internal/db"
	"authguard/internal/logging"
	"authguard/internal/platform/rbac"
	"authguard/internal/reqctx"
	"authguard/internal/security"
	userdomain "authguard/internal/user/domain"
	userrepo "authguard/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Timestamp: true})

	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if !reqctx.ValidateEmail(email) {
		log.Fatal().Str("email", email).Msg("SEED_ADMIN_EMAIL is not a valid email address")
	}
	if res := security.ValidatePasswordStrength(cfg.SeedAdminPassword); !res.Valid {
		log.Fatal().Strs("violations", res.Violations).Msg("SEED_ADMIN_PASSWORD is too weak")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatal().Err(err).Msg("seed check")
	}
	if existing != nil {
		log.Info().Str("email", email).Str("role", string(existing.Role)).Msg("seed already applied, skipping")
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(cfg.SeedAdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          reqctx.Sanitize(cfg.SeedAdminName),
		Role:          rbac.RoleAdmin,
		PasswordHash:  hash,
		IsActive:      true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.Validate(); err != nil {
		log.Fatal().Err(err).Msg("seed user")
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatal().Err(err).Msg("create admin")
	}
	log.Info().Str("id", u.ID).Str("email", email).Msg("admin account created")
}
