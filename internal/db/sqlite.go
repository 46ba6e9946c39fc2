// Package db opens the local record store and the remote ledger mirror database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/stashlink/backend/migrations"
)

// SQLiteDriver is the database/sql driver name registered by modernc.org/sqlite.
const SQLiteDriver = "sqlite"

// goose keeps its base filesystem and dialect in package state.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenSQLite opens dsn, checks the connection and applies the embedded migrations.
// SQLite allows one writer, so the pool is capped at a single connection.
func OpenSQLite(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(SQLiteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := MigrateSQLite(ctx, conn.DB); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// MigrateSQLite brings the record store schema up to date.
func MigrateSQLite(ctx context.Context, conn *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.SQLite)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, conn, "sqlite"); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
