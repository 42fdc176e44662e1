package boxd

import "time"

// BoxState is everything boxd persists between restarts.
type BoxState struct {
	AdminPasswordHash string
	ConfiguredAt      time.Time
}

func (s BoxState) HasPassword() bool {
	return s.AdminPasswordHash != ""
}

type StateManager interface {
	Get() BoxState
	SetAdminPasswordHash(hash string) error
	MarkConfigured(at time.Time) error
}
