// Package dbtest connects integration tests to a disposable Postgres
// database named by TEST_DATABASE_URL. Tests are skipped when it is unset.
// The tables are truncated per call, so run packages serially (go test -p 1).
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-embed-auth/internal/db"
	"github.com/jrsteele09/go-embed-auth/internal/db/migrate"
)

const EnvDatabaseURL = "TEST_DATABASE_URL"

// Open migrates the database, empties every table and returns a pool that is
// closed when the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skip(EnvDatabaseURL + " not set")
	}

	require.NoError(t, migrate.Run(dsn, migrate.DirectionUp))

	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE param_sessions, user_roles, users, settings RESTART IDENTITY")
	require.NoError(t, err)
	return pool
}
