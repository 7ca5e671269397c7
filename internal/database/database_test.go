package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(wrapped))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/002_photos.up.sql":  {Data: []byte("ALTER TABLE photos ADD COLUMN x INT;")},
		"migrations/001_initial.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"migrations/README.md":          {Data: []byte("ignored")},
	}

	all, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "001_initial", all[0].version)
	assert.Equal(t, "002_photos", all[1].version)

	todo := pending(all, map[string]bool{"001_initial": true})
	require.Len(t, todo, 1)
	assert.Equal(t, "002_photos", todo[0].version)
	assert.Empty(t, pending(all, map[string]bool{"001_initial": true, "002_photos": true}))
}

func TestEmbeddedMigrationCreatesAllTables(t *testing.T) {
	t.Parallel()

	all, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "001_initial", all[0].version)

	for _, table := range []string{"users", "refresh_tokens", "audit_logs", "bus_stops", "change_logs", "photos", "districts", "routes"} {
		assert.True(t,
			strings.Contains(all[0].sql, "CREATE TABLE IF NOT EXISTS "+table+" ("),
			"migration does not create %s", table)
	}
}
