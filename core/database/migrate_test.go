package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/migrations"
)

func TestListMigrationFilesIncludesEmbeddedSchema(t *testing.T) {
	files := listMigrationFiles(migrations.FS)
	assert.Contains(t, files, "000001_init.up.sql")
	for _, f := range files {
		assert.NotContains(t, f, ".down.")
	}
}

func TestSelectApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_init.up.sql":    {},
		"000001_init.down.sql":  {},
		"000002_results.up.sql": {},
		"000003_indexes.up.sql": {},
		"notes.txt":             {},
	}
	files := listMigrationFiles(fsys)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_results.up.sql", "000003_indexes.up.sql"}, files)
	assert.Equal(t, []string{"000002_results.up.sql", "000003_indexes.up.sql"}, selectApplied(files, 1, 3))
	assert.Empty(t, selectApplied(files, 3, 3))
}

func TestURLEscapesCredentials(t *testing.T) {
	got := URL(config.DatabaseConfig{User: "meme", Password: "p@ss:word", Host: "db", Port: "5432", Name: "arena", SSLMode: "disable"})
	assert.Equal(t, "postgres://meme:p%40ss%3Aword@db:5432/arena?sslmode=disable", got)
}
