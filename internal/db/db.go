// Package db persists the occupancy analysis output: one row per confirmed
// table session, one summary row per stable identity, and a run record tying
// them together.
package db

import (
	"fmt"
	"net/http"

	"database/sql"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/cafesense/occupancy.report/internal/monitoring"
)

// DB wraps the sqlite handle holding the session log.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the sqlite database at path. Schema setup
// is handled separately by MigrateUp so that existing databases upgrade
// explicitly rather than silently.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// AttachAdminRoutes mounts live SQL debugging on the status server mux.
// Read-only poking at the session log without stopping a long replay.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", db.path), db.DB, &tailsql.DBOptions{
		Label: "Occupancy DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	monitoring.Logf("admin SQL routes attached for %s", db.path)
	return nil
}
