package migrate

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMigrator struct {
	upErr      error
	downErr    error
	versionVal uint
	dirty      bool
	versionErr error
}

func (m *mockMigrator) Up() error   { return m.upErr }
func (m *mockMigrator) Down() error { return m.downErr }
func (m *mockMigrator) Version() (uint, bool, error) {
	return m.versionVal, m.dirty, m.versionErr
}

func withMigrator(t *testing.T, m migrator, err error) {
	t.Helper()
	orig := migratorFactory
	migratorFactory = func(*sql.DB) (migrator, error) { return m, err }
	t.Cleanup(func() { migratorFactory = orig })
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	for _, e := range entries {
		content, err := migrations.ReadFile("migrations/" + e.Name())
		require.NoError(t, err)
		if strings.HasSuffix(e.Name(), ".up.sql") {
			assert.Contains(t, string(content), "CREATE TABLE", e.Name())
		} else {
			assert.Contains(t, string(content), "DROP TABLE", e.Name())
		}
	}
}

func TestSchemaNamesConstraintsUsedByStore(t *testing.T) {
	content, err := migrations.ReadFile("migrations/000001_calls.up.sql")
	require.NoError(t, err)
	for _, name := range []string{"calls_pkey", "calls_group_owner_uidx", "call_participants_pkey", "ON DELETE CASCADE", "seq"} {
		assert.Contains(t, string(content), name)
	}
}

func TestRun(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionVal: 2}, nil)
		assert.NoError(t, Run(nil, nil))
	})
	t.Run("no change", func(t *testing.T) {
		withMigrator(t, &mockMigrator{upErr: migrate.ErrNoChange, versionVal: 2}, nil)
		assert.NoError(t, Run(nil, nil))
	})
	t.Run("up error", func(t *testing.T) {
		withMigrator(t, &mockMigrator{upErr: errors.New("boom")}, nil)
		assert.ErrorContains(t, Run(nil, nil), "running migrations")
	})
	t.Run("dirty", func(t *testing.T) {
		withMigrator(t, &mockMigrator{versionVal: 1, dirty: true}, nil)
		assert.ErrorContains(t, Run(nil, nil), "dirty")
	})
	t.Run("factory error", func(t *testing.T) {
		withMigrator(t, nil, errors.New("factory error"))
		assert.ErrorContains(t, Run(nil, nil), "factory error")
	})
}

func TestDown(t *testing.T) {
	withMigrator(t, &mockMigrator{downErr: migrate.ErrNoChange}, nil)
	assert.NoError(t, Down(nil))

	withMigrator(t, &mockMigrator{downErr: errors.New("boom")}, nil)
	assert.ErrorContains(t, Down(nil), "rolling back")
}

func TestVersion(t *testing.T) {
	withMigrator(t, &mockMigrator{versionVal: 2}, nil)
	v, dirty, err := Version(nil)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)
}
