// Package database opens the SQLite store used for stashed attempts and
// team labels.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

const memory = ":memory:"

// Open connects to SQLite through libSQL. File databases run in WAL mode;
// an in-memory database is pinned to one connection so every query sees
// the same data.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"}
	if path == memory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}

	// Some PRAGMAs return a row and libSQL refuses those through Exec.
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// Checker reports database reachability to the health endpoint.
type Checker struct{ DB *sql.DB }

func (c Checker) Check(ctx context.Context) error { return c.DB.PingContext(ctx) }
