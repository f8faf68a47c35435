package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a throwaway PostgreSQL container, runs the schema
// migrations against it and returns a pool plus a cleanup func the caller
// must defer.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "create pool")

	runTestMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runTestMigrations applies the SQL files from
// internal/storage/migrations/postgres in lexical order. The migrations
// package cannot be imported from here (it imports this one), so the files
// are read from disk relative to this source file.
func runTestMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, here, _, ok := runtime.Caller(0)
	require.True(t, ok, "caller information unavailable")
	dir := filepath.Join(filepath.Dir(here), "..", "migrations", "postgres")

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	require.NoError(t, err, "glob migration files")
	require.NotEmpty(t, files, "no migration files under %s", dir)
	sort.Strings(files)

	for _, path := range files {
		sql, err := os.ReadFile(path)
		require.NoError(t, err, "read migration %s", filepath.Base(path))

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply migration %s", filepath.Base(path))
	}
}

// ptr returns a pointer to v, for optional columns in fixtures.
func ptr[T any](v T) *T {
	return &v
}
