package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/marinelog/internal/client/migrations"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/records"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/tombstones"
	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/retryx"

	_ "modernc.org/sqlite"
)

// Repositories bundles the local stores backed by one database.
type Repositories struct {
	DB         *sql.DB
	Records    records.Repository
	Metadata   metadata.Repository
	Tombstones tombstones.Repository
}

// Close releases the database, if any.
func (r *Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// MemoryRepositories is the fallback used when the database cannot be
// opened; nothing survives a restart.
func MemoryRepositories(logger logging.Logger) *Repositories {
	return &Repositories{
		Records:    records.NewMemoryRepository(logger),
		Metadata:   metadata.NewMemoryRepository(),
		Tombstones: tombstones.NewMemoryRepository(),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenDatabase opens dsn and applies migrations, retrying with the store
// policy since the file may be briefly locked by another process.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	return retryx.Value(ctx, retryx.DefaultStorePolicy, retryx.Always, func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	})
}

func InitDatabase(ctx context.Context, dsn string, logger logging.Logger) (*Repositories, error) {
	db, err := OpenDatabase(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		DB:         db,
		Records:    records.NewSQLiteRepository(db, logger),
		Metadata:   metadata.NewSQLiteRepository(db),
		Tombstones: tombstones.NewSQLiteRepository(db),
	}, nil
}
