package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/platform/platform-backend/internal/database/migrations"
)

func TestEmbeddedSchemaDefinesTables(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, f := range files {
		body, err := fs.ReadFile(migrations.FS, f)
		require.NoError(t, err)
		all.Write(body)
	}
	schema := all.String()

	for _, table := range []string{"users", "farmer_applications", "projects", "milestones", "investments"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
	assert.Contains(t, schema, "CHECK (total_pledged <= goal)")
}
