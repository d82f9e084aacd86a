package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mountpass/internal/platform/postgres/migrations"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n", ExtractUpMigration(content))
	assert.Equal(t, "CREATE TABLE b (id INT);", ExtractUpMigration("CREATE TABLE b (id INT);"))
	assert.Equal(t, "\nCREATE TABLE c (id INT);", ExtractUpMigration("-- +migrate Up\nCREATE TABLE c (id INT);"))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	var schema strings.Builder
	for _, name := range names {
		content, err := fs.ReadFile(migrations.FS, name)
		require.NoError(t, err)
		up := ExtractUpMigration(string(content))
		assert.NotContains(t, up, "DROP TABLE", name)
		schema.WriteString(up)
	}
	for _, table := range []string{"submitters", "coords", "levels", "passes", "pass_images", "outbox"} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
