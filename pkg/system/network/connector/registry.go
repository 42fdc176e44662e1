package network_connector

import (
	"sync"

	boxd "github.com/lnbitsbox/boxd/pkg"
)

// Registry holds the one connection attempt the box knows about. The
// connect procedure is its only writer; everything else reads copies.
type Registry struct {
	mu      sync.Mutex
	attempt boxd.ConnectionAttempt
}

func NewRegistry() *Registry {
	return &Registry{
		attempt: boxd.ConnectionAttempt{Status: boxd.AttemptIdle},
	}
}

// BeginIfIdle moves the registry to connecting unless an attempt is
// already in flight, in which case nothing is touched.
func (r *Registry) BeginIfIdle(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attempt.Status == boxd.AttemptConnecting {
		return boxd.ErrConflict
	}
	r.attempt = boxd.ConnectionAttempt{
		Status:  boxd.AttemptConnecting,
		Message: message,
	}
	return nil
}

func (r *Registry) Snapshot() boxd.ConnectionAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

func (r *Registry) finish(status boxd.AttemptStatus, message, ip string) boxd.ConnectionAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = boxd.ConnectionAttempt{
		Status:  status,
		Message: message,
		IP:      ip,
	}
	return r.attempt
}
