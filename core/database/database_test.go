package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/autobot/core/config"
)

func TestDSNAndURL(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: "5432", User: "bot", Password: "p@ss word", Name: "autobot", SSLMode: "disable"}

	require.Equal(t, "user=bot password=p@ss word host=db port=5432 dbname=autobot sslmode=disable", DSN(cfg))
	require.Equal(t, "postgres://bot:p%40ss%20word@db:5432/autobot?sslmode=disable", URL(cfg))
}

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.up.sql"), 0o755))

	files := listMigrationFiles(dir)
	require.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql"}, files)
	require.Equal(t, []string{"0002_b.up.sql"}, selectApplied(files, 1, 2))
	require.Empty(t, selectApplied(files, 2, 2))
	require.Equal(t, uint64(7), parseVersion("0007_x.up.sql"))
	require.Zero(t, parseVersion("bogus"))
}

func TestRepoMigrationsPresent(t *testing.T) {
	files := listMigrationFiles(filepath.Join("..", "..", "migrations"))
	require.Contains(t, files, "0001_auto_bots.up.sql")
}
