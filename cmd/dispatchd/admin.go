package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/persistence"
	"github.com/spec-kit/defect-dispatch/internal/repository"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required for this command")

func runMigrate(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errNoDatabase
	}
	return persistence.RunMigrations(c.Context, pg.PoolHandle(), logger)
}

func runToken(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	role := domain.Role(strings.ToLower(c.String("role")))
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", role)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(c.String("user"), role)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(c.App.Writer, token)
	logger.Info("token issued",
		zap.String("user_id", c.String("user")),
		zap.String("role", string(role)),
		zap.Time("expires_at", expiresAt))
	return nil
}

func runUsersAdd(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	role := domain.Role(strings.ToLower(c.String("role")))
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", role)
	}

	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errNoDatabase
	}

	id := c.String("id")
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:        id,
		Name:      c.String("name"),
		Email:     strings.ToLower(c.String("email")),
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repository.NewUserRepository(pg.PoolHandle()).Create(c.Context, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintln(c.App.Writer, user.ID)
	return nil
}
