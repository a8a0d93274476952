package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migrations are applied in order; each must be idempotent.
var migrations = []struct {
	name string
	stmt string
}{
	{
		name: "0001_kv",
		stmt: `CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// RunMigrations creates the tables the client keeps on device.
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	for _, m := range migrations {
		logger.Debug("applying migration", zap.String("name", m.name))
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	logger.Debug("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
