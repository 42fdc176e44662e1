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

func TestLogTailerFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0o644))
	log, _ := test.NewNullLogger()

	tailer := NewLogTailer(path, log)
	tailer.poll = 5 * time.Millisecond
	cancel, lines, err := tailer.GetChan()
	require.NoError(t, err)
	defer cancel()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("Downloading ")
	require.NoError(t, err)
	_, err = f.WriteString("v1.2.0\r\nActivating\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []string{"Downloading v1.2.0", "Activating"}, got)

	cancel()
	for range lines {
	}
}

func TestLogTailerMissingFile(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, _, err := NewLogTailer(filepath.Join(t.TempDir(), "nope"), log).GetChan()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
