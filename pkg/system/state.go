package system

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	boxd "github.com/lnbitsbox/boxd/pkg"
	"github.com/lnbitsbox/boxd/pkg/gobdb"
	"github.com/sirupsen/logrus"
)

var _ boxd.StateManager = &StateManager{}

type StateManager struct {
	mu    sync.Mutex
	db    *gobdb.GobFile[boxd.BoxState]
	state boxd.BoxState
	log   logrus.FieldLogger
}

func NewStateManager(dataDir string, log logrus.FieldLogger) *StateManager {
	return &StateManager{
		db:  gobdb.NewGobFile[boxd.BoxState](filepath.Join(dataDir, "boxd.gob")),
		log: log.WithField("system", "state"),
	}
}

// Load reads the state file. A missing or empty file starts from zero state.
func (s *StateManager) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.db.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, gobdb.ErrEmpty) {
			s.log.Infof("No state at %s, starting empty", s.db.Path())
			s.state = boxd.BoxState{}
			return nil
		}
		return err
	}
	s.state = state
	return nil
}

func (s *StateManager) Get() boxd.BoxState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StateManager) SetAdminPasswordHash(hash string) error {
	return s.update(func(st *boxd.BoxState) { st.AdminPasswordHash = hash })
}

func (s *StateManager) MarkConfigured(at time.Time) error {
	return s.update(func(st *boxd.BoxState) { st.ConfiguredAt = at })
}

func (s *StateManager) update(fn func(*boxd.BoxState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	if err := s.db.Save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}
