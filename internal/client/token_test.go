package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFile(t *testing.T) {
	f := TokenFile{Path: filepath.Join(t.TempDir(), "notesctl", "token")}

	_, err := f.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, f.Save("first"))
	require.NoError(t, f.Save("second"))
	token, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	_, err = f.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenFileBlank(t *testing.T) {
	f := TokenFile{Path: filepath.Join(t.TempDir(), "token")}
	require.NoError(t, os.WriteFile(f.Path, []byte("\n"), 0o600))
	_, err := f.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
