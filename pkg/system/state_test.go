package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log, _ := test.NewNullLogger()

	sm := NewStateManager(dir, log)
	require.NoError(t, sm.Load())
	assert.False(t, sm.Get().HasPassword())

	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sm.SetAdminPasswordHash("hash"))
	require.NoError(t, sm.MarkConfigured(at))

	reloaded := NewStateManager(dir, log)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "hash", reloaded.Get().AdminPasswordHash)
	assert.True(t, at.Equal(reloaded.Get().ConfiguredAt))
}

func TestStateManagerKeepsStateOnSaveError(t *testing.T) {
	log, _ := test.NewNullLogger()
	sm := NewStateManager(filepath.Join(t.TempDir(), "missing"), log)
	require.NoError(t, sm.Load())

	err := sm.SetAdminPasswordHash("hash")
	assert.Error(t, err)
	assert.Empty(t, sm.Get().AdminPasswordHash)
}

func TestStateManagerCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boxd.gob"), []byte("not gob"), 0o600))
	log, _ := test.NewNullLogger()

	assert.Error(t, NewStateManager(dir, log).Load())
}
