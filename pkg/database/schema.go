package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	dbsql "github.com/rentzentro/platform/pkg/database/sql"
	"github.com/rentzentro/platform/pkg/logging"
)

// PostgresConn is the subset of *sql.DB that ApplySchema needs.
type PostgresConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplySchema executes every embedded schema file against the connection, in
// lexical order. All schema files are idempotent, so this is safe on every
// boot.
func ApplySchema(ctx context.Context, db PostgresConn, logger logging.Logger) error {
	entries, err := dbsql.Content.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := dbsql.Content.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("failed to read embedded schema file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Info("Applied schema file")
	}

	return nil
}
