package gobdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Hash string
	When time.Time
}

func TestGobFileSaveLoad(t *testing.T) {
	dir := t.TempDir()
	gf := NewGobFile[record](filepath.Join(dir, "state.gob"))

	_, err := gf.Load()
	assert.True(t, errors.Is(err, os.ErrNotExist))

	want := record{Hash: "$2a$10$abc", When: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, gf.Save(want))

	got, err := gf.Load()
	require.NoError(t, err)
	assert.True(t, want.When.Equal(got.When))
	assert.Equal(t, want.Hash, got.Hash)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGobFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.gob")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewGobFile[record](path).Load()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestGobFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.gob")
	gf := NewGobFile[record](path)
	require.NoError(t, gf.Save(record{Hash: "x"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, gf.WithMode(0o640).Save(record{Hash: "y"}))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestGobFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.gob")
	require.NoError(t, os.WriteFile(path, []byte("not gob"), 0o600))

	_, err := NewGobFile[record](path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}
