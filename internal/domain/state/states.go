package state

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// UserStateStore persists per-(bundle, user) installation state in one
// JSON file keyed by <bundleName>_<userId>. Key decoding stays
// unambiguous because bundle names never start a trailing
// underscore-digits run of their own (first character is a letter and
// the user id suffix is pure digits).
type UserStateStore struct {
	mu      sync.Mutex
	path    string
	metrics *monitoring.Metrics
}

// NewUserStateStore opens (creating if absent) the user-state file.
func NewUserStateStore(path string) (*UserStateStore, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &UserStateStore{path: path}, nil
}

// WithMetrics adds metrics tracking to the store.
func (s *UserStateStore) WithMetrics(metrics *monitoring.Metrics) *UserStateStore {
	s.metrics = metrics
	return s
}

// LoadAll reads every persisted user state keyed by its store key.
func (s *UserStateStore) LoadAll() (map[string]*types.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *UserStateStore) loadLocked() (map[string]*types.UserState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*types.UserState), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrStoreIO, s.path, err)
	}
	if len(data) == 0 {
		return make(map[string]*types.UserState), nil
	}
	var states map[string]*types.UserState
	if err := sonic.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrStoreIO, s.path, err)
	}
	if states == nil {
		states = make(map[string]*types.UserState)
	}
	return states, nil
}

// Save writes one user state via a full read-modify-rewrite.
func (s *UserStateStore) Save(state *types.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	states, err := s.loadLocked()
	if err != nil {
		s.record("error", start)
		return err
	}
	states[bundle.UserKey(state.BundleName, state.UserID)] = state
	if err := s.rewriteLocked(states); err != nil {
		s.record("error", start)
		return err
	}
	s.record("success", start)
	return nil
}

// Delete removes one (bundle, user) entry.
func (s *UserStateStore) Delete(bundleName string, userID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	states, err := s.loadLocked()
	if err != nil {
		s.record("error", start)
		return err
	}
	delete(states, bundle.UserKey(bundleName, userID))
	if err := s.rewriteLocked(states); err != nil {
		s.record("error", start)
		return err
	}
	s.record("success", start)
	return nil
}

func (s *UserStateStore) rewriteLocked(states map[string]*types.UserState) error {
	data, err := sonic.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrStoreIO, s.path, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrStoreIO, s.path, err)
	}
	return nil
}

func (s *UserStateStore) record(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStoreRewrite("states", status, time.Since(start))
	}
}
