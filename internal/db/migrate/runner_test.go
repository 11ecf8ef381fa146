package migrate

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schemaTables = []string{
	"users", "roles", "permissions", "role_permissions", "user_roles", "refresh_tokens", "sessions",
	"email_verification_tokens", "password_reset_tokens", "notifications", "files", "audit_logs",
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestSource_EveryVersionHasUpAndDown(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	count := 0
	for {
		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "version %d has no up migration", version)
		assert.NotEmpty(t, strings.TrimSpace(readAll(t, up)))

		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "version %d has no down migration", version)
		assert.NotEmpty(t, strings.TrimSpace(readAll(t, down)))
		count++

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		require.Greater(t, next, version)
		version = next
	}
	assert.GreaterOrEqual(t, count, 1)
}

func TestSource_InitialSchemaCreatesAndDropsEveryTable(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	upSQL := readAll(t, up)
	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	downSQL := readAll(t, down)

	for _, table := range schemaTables {
		assert.Contains(t, upSQL, "CREATE TABLE "+table+" (")
		assert.Contains(t, downSQL, "DROP TABLE IF EXISTS "+table+";")
	}
	// Users are dropped last so every referencing table goes first.
	assert.Greater(t, strings.Index(downSQL, "DROP TABLE IF EXISTS users;"),
		strings.Index(downSQL, "DROP TABLE IF EXISTS user_roles;"))
	assert.Contains(t, upSQL, "notifications_status_updated_at_idx", "stale notification sweep needs its index")
}

func TestRun_RejectsBadArguments(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		direction string
		want      string
	}{
		{"empty dsn", "", Up, "DATABASE_URL is not set"},
		{"blank dsn", "   ", Down, "DATABASE_URL is not set"},
		{"empty direction", "postgres://localhost/app", "", "direction must be"},
		{"upper case", "postgres://localhost/app", "UP", "direction must be"},
		{"sideways", "postgres://localhost/app", "sideways", "direction must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(tt.dsn, tt.direction)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, errors.Is(err, ErrNoChange))
		})
	}
}

func TestRun_UnknownDatabaseScheme(t *testing.T) {
	err := Run("mysql://localhost/app", Up)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "migrate: "), err.Error())
}
