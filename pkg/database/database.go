package database

import (
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      newGormLogger(log, cfg.SlowQueryThreshold),
		PrepareStmt: true,
		// Surfaces unique and foreign key violations as gorm.ErrDuplicatedKey
		// and gorm.ErrForeignKeyViolated.
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DNS(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	for _, schema := range []string{"auth", "scheduling", "audit"} {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.User{},
		&domain.AuditLog{},
		&provider.Provider{},
		&appointment.Appointment{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createConstraints(db); err != nil {
		return fmt.Errorf("creating constraints: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

var constraints = []struct {
	name  string
	query string
}{
	{
		name:  "chk_appointments_range",
		query: `DO $$ BEGIN ALTER TABLE scheduling.appointments ADD CONSTRAINT chk_appointments_range CHECK (end_at >= start_at); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	},
	// The overlap scan filters on provider and a start/end window.
	{
		name:  "idx_appointments_provider_window",
		query: `CREATE INDEX IF NOT EXISTS idx_appointments_provider_window ON scheduling.appointments (provider_id, start_at, end_at)`,
	},
	{
		name:  "idx_appointments_client_start",
		query: `CREATE INDEX IF NOT EXISTS idx_appointments_client_start ON scheduling.appointments (client_id, start_at)`,
	},
}

func createConstraints(db *gorm.DB) error {
	for _, c := range constraints {
		if err := db.Exec(c.query).Error; err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
