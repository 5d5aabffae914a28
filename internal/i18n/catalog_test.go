package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogKeepsDottedLeaves(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	assert.True(t, c.Has("meme.error.ai"))
	assert.True(t, c.Has("meme.error.ai.limit"))
	assert.Equal(t, "Contest: 3 of 33 participants.", c.Text("contest.status", 3, 33))
	assert.NotEmpty(t, c.Keys())
}

func TestUnknownKeyRendersAsKey(t *testing.T) {
	t.Parallel()

	c := MustDefault()
	assert.Equal(t, "no.such.key", c.Text("no.such.key"))
	assert.False(t, c.Has("no.such.key"))
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ru.yaml")
	overlay := "common:\n  error: \"Ошибка\"\n\"vote.ok\": \"Спасибо!\"\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ошибка", c.Text("common.error"))
	assert.Equal(t, "Спасибо!", c.Text("vote.ok"))
	assert.Equal(t, "That meme does not exist.", c.Text("vote.not_found"))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
