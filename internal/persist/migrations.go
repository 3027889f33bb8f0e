package persist

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseLogger routes goose output through zap at debug level.
type gooseLogger struct{ log *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debugf(strings.TrimSpace(format), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatalf(strings.TrimSpace(format), v...)
}

// RunMigrations applies the pending mod_items migrations and returns the
// schema version the database ends up at.
func RunMigrations(ctx context.Context, db *DB) (int64, error) {
	goose.SetLogger(gooseLogger{log: db.log.Named("goose").Sugar()})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	db.log.Info("mod store schema ready", zap.Int64("version", version))
	return version, nil
}
