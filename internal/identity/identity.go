package identity

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/i474232898/weather-diary-sync/internal/state"
	"github.com/sirupsen/logrus"
)

// Manager hands out the stable per-installation user id. The id is minted
// once, persisted, and reused for both the remote store path and the
// encryption key derivation, so it must never change for an installation.
type Manager struct {
	states *state.Store

	mu sync.Mutex
	id string
}

func NewManager(states *state.Store) *Manager {
	return &Manager{states: states}
}

// UserID returns the persisted id, minting a fresh UUID on first use.
func (m *Manager) UserID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.id != "" {
		return m.id, nil
	}

	id, err := m.states.Get(state.KeyUserID)
	if err == nil && id != "" {
		m.id = id
		return id, nil
	}
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := m.states.Set(state.KeyUserID, id); err != nil {
		return "", err
	}
	logrus.WithField("userId", id).Info("minted new user id")
	m.id = id
	return id, nil
}
