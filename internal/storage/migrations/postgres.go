package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"solana-copysim/internal/storage/postgres"
)

// PostgresFS holds the event-log and simulation schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// RunPostgresMigrations applies every embedded schema file in lexical
// filename order. The files guard themselves with IF NOT EXISTS, so startup
// can run them unconditionally.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := fs.Glob(PostgresFS, "postgres/*.sql")
	if err != nil {
		return fmt.Errorf("list postgres migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		sql, err := fs.ReadFile(PostgresFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
