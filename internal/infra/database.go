package infra

import (
	"fmt"

	"tillcore/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate,
// then applies the idempotent SQL patches GORM cannot express — most
// importantly the partial unique index that makes open-session exclusivity a
// database guarantee rather than a check-then-act race.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Map driver duplicate-key errors to gorm.ErrDuplicatedKey so the
		// repository can translate them to the domain error.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations applies the schema. Also used by the integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Cashier{},
		&model.RegisterSession{},
		&model.TenderDelta{},
		&model.LedgerAdjustment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
// Each statement is guarded so re-running on a patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one OPEN session per register. Concurrent opens race on
		// this index; the loser gets a duplicate-key error.
		{"unique open session per register", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_register_sessions_open') THEN
    CREATE UNIQUE INDEX uni_register_sessions_open
        ON register_sessions (register_id)
        WHERE status = 'OPEN';
  END IF;
END $$`},
		// Ledger snapshot reads filter by session and time window.
		{"ledger delta window index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ledger_deltas_session_window') THEN
    CREATE INDEX idx_ledger_deltas_session_window
        ON ledger_deltas (session_id, occurred_at);
  END IF;
END $$`},
		// The external ledger polls pending adjustments.
		{"pending adjustments index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_ledger_adjustments_pending') THEN
    CREATE INDEX idx_ledger_adjustments_pending
        ON ledger_adjustments (created_at)
        WHERE status = 'pending';
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
