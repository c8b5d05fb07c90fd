// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/autobrr/cross-pollinator/internal/dbinterface"
)

// ErrDatabaseNotFound indicates the cross-seed database file does not exist.
// This is a fatal startup error: the tool is pointless without the database.
var ErrDatabaseNotFound = errors.New("cross-seed database not found")

// DB wraps the read-only connection to the external cross-seed database.
// The schema is owned by the cross-seed tool; no writes ever happen here.
type DB struct {
	conn *sql.DB
	path string
}

// OpenReadOnly opens the cross-seed database at path in read-only mode.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.Wrap(ErrDatabaseNotFound, path)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cross-seed database")
	}

	// The cross-seed tool may hold the database open; a single read connection
	// avoids lock contention with it.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to connect to cross-seed database")
	}

	return &DB{conn: conn, path: path}, nil
}

// Conn exposes the connection for stores behind the Querier seam, so store
// tests can run against a fixture database.
func (db *DB) Conn() dbinterface.Querier {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// HasColumn reports whether a table in the cross-seed schema carries the
// named column. Used to detect which tracker-membership source is available.
func (db *DB) HasColumn(ctx context.Context, table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, "failed to probe %s.%s", table, column)
	}
	return count > 0, nil
}

// HasTable reports whether the named table exists in the cross-seed schema.
func (db *DB) HasTable(ctx context.Context, table string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrapf(err, "failed to probe table %s", table)
	}
	return count > 0, nil
}
