package network_connector

import (
	"sync"
	"sync/atomic"
	"testing"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/stretchr/testify/assert"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, boxd.AttemptIdle, r.Snapshot().Status)

	assert.NoError(t, r.BeginIfIdle("Connecting to A..."))
	assert.ErrorIs(t, r.BeginIfIdle("Connecting to B..."), boxd.ErrConflict)
	assert.Equal(t, "Connecting to A...", r.Snapshot().Message)

	r.finish(boxd.AttemptFailed, "Failed to connect to A", "")
	assert.True(t, r.Snapshot().Status.Terminal())

	assert.NoError(t, r.BeginIfIdle("Connecting to B..."))
	assert.Equal(t, boxd.ConnectionAttempt{Status: boxd.AttemptConnecting, Message: "Connecting to B..."}, r.Snapshot())
}

func TestRegistrySingleFlight(t *testing.T) {
	r := NewRegistry()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.BeginIfIdle("Connecting...") == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}
