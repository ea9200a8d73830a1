package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/animegate/internal/audit/domain"
	broadcastdomain "github.com/smallbiznis/animegate/internal/broadcast/domain"
	catalogdomain "github.com/smallbiznis/animegate/internal/catalog/domain"
	gatedomain "github.com/smallbiznis/animegate/internal/gate/domain"
	ledgerdomain "github.com/smallbiznis/animegate/internal/ledger/domain"
	stepdomain "github.com/smallbiznis/animegate/internal/step/domain"
	subscriptiondomain "github.com/smallbiznis/animegate/internal/subscription/domain"
	userdomain "github.com/smallbiznis/animegate/internal/user/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table owned by the application.
func Models() []any {
	return []any{
		&userdomain.User{},
		&ledgerdomain.Balance{},
		&ledgerdomain.LedgerEntry{},
		&subscriptiondomain.VipGrant{},
		&catalogdomain.Title{},
		&catalogdomain.Episode{},
		&stepdomain.Record{},
		&broadcastdomain.Job{},
		&gatedomain.JoinRequest{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate builds the schema from the gorm models. It is used for sqlite
// deployments and tests, where the postgres migrations do not apply.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
