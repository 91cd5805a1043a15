// Package migrations applies the embedded SQL schema with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

const (
	dialect = "postgres"
	dir     = "sql"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

var setupOnce sync.Once
var setupErr error

func setup() error {
	setupOnce.Do(func() {
		goose.SetBaseFS(migrationsFS)
		setupErr = goose.SetDialect(dialect)
	})

	return setupErr
}

func sqlDB(db *gorm.DB) (*sql.DB, error) {
	if err := setup(); err != nil {
		return nil, errors.Wrap(err, "goose setup")
	}

	conn, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}

	return conn, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *gorm.DB) error {
	conn, err := sqlDB(db)
	if err != nil {
		return err
	}

	return errors.Wrap(goose.UpContext(ctx, conn, dir), "migrate up")
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *gorm.DB) error {
	conn, err := sqlDB(db)
	if err != nil {
		return err
	}

	return errors.Wrap(goose.DownContext(ctx, conn, dir), "migrate down")
}

// Status logs the applied state of every migration through goose's logger.
func Status(ctx context.Context, db *gorm.DB) error {
	conn, err := sqlDB(db)
	if err != nil {
		return err
	}

	return errors.Wrap(goose.StatusContext(ctx, conn, dir), "migrate status")
}

// Version returns the current schema version.
func Version(ctx context.Context, db *gorm.DB) (int64, error) {
	conn, err := sqlDB(db)
	if err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, conn)
	if err != nil {
		return 0, errors.Wrap(err, "read schema version")
	}

	return version, nil
}
