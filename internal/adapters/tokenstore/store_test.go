package tokenstore

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/home/u/.meetclient/token.json")
	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSaveLoadClear(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/home/u/.meetclient/token.json")

	require.NoError(t, s.Save("abc"))
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	info, err := fs.Stat("/home/u/.meetclient/token.json")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSaveEmptyClears(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/t.json")
	require.NoError(t, s.Save("abc"))
	require.NoError(t, s.Save(""))
	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestCorruptTokenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t.json", []byte("{"), 0o600))
	_, err := New(fs, "/t.json").Load()
	assert.Error(t, err)
}
