// Package bootstrap runs schema migrations and provisions the initial
// SUPERADMIN account at process startup.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bwmarrin/snowflake"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/domain"
	"github.com/smallbiznis/valora-admin/internal/migrations"
	"github.com/smallbiznis/valora-admin/internal/password"
	"github.com/smallbiznis/valora-admin/internal/repository"
)

// Migrate applies pending goose migrations before the server starts serving.
func Migrate(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return runMigrations(ctx, cfg, logger)
		},
	})
}

func runMigrations(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database migrations applied")
	return nil
}

// EnsureSuperAdmin creates the configured SUPERADMIN account if none exists.
// Running it repeatedly never creates a second one. Failures are logged, not
// fatal: the service can still serve already-provisioned deployments.
func EnsureSuperAdmin(lc fx.Lifecycle, cfg config.Config, admins repository.AdminRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ensureSuperAdmin(ctx, cfg, admins, node); err != nil {
				logger.Error("superadmin bootstrap failed", zap.Error(err))
			}
			return nil
		},
	})
}

func ensureSuperAdmin(ctx context.Context, cfg config.Config, admins repository.AdminRepository, node *snowflake.Node) error {
	exists, err := admins.ExistsByRole(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("lookup superadmin: %w", err)
	}
	if exists {
		return nil
	}

	hashed, err := password.Hash(cfg.SuperadminPassword)
	if err != nil {
		return fmt.Errorf("hash superadmin password: %w", err)
	}

	_, err = admins.Create(ctx, domain.Admin{
		ID:           node.Generate().Int64(),
		Email:        cfg.SuperadminEmail,
		PasswordHash: hashed,
		IsActive:     true,
		Role:         domain.RoleSuperAdmin,
	})
	if err != nil {
		return fmt.Errorf("create superadmin: %w", err)
	}
	return nil
}
