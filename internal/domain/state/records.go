package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// RecordStore persists every bundle record in one JSON file mapping
// bundle name to record. Each mutation rewrites the whole file under
// the store mutex.
type RecordStore struct {
	mu      sync.Mutex
	path    string
	metrics *monitoring.Metrics
}

// NewRecordStore opens (creating if absent) the record database file.
func NewRecordStore(path string) (*RecordStore, error) {
	if err := ensureFile(path); err != nil {
		return nil, err
	}
	return &RecordStore{path: path}, nil
}

// WithMetrics adds metrics tracking to the store.
func (s *RecordStore) WithMetrics(metrics *monitoring.Metrics) *RecordStore {
	s.metrics = metrics
	return s
}

// LoadAll reads the whole record database. A missing or empty file is
// an empty database, not an error.
func (s *RecordStore) LoadAll() (map[string]*bundle.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *RecordStore) loadLocked() (map[string]*bundle.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*bundle.Record), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrStoreIO, s.path, err)
	}
	if len(data) == 0 {
		return make(map[string]*bundle.Record), nil
	}
	var records map[string]*bundle.Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrStoreIO, s.path, err)
	}
	if records == nil {
		records = make(map[string]*bundle.Record)
	}
	return records, nil
}

// Save writes one bundle's record via a full read-modify-rewrite.
func (s *RecordStore) Save(r *bundle.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	records, err := s.loadLocked()
	if err != nil {
		s.record("error", start)
		return err
	}
	records[r.Name] = r
	if err := s.rewriteLocked(records); err != nil {
		s.record("error", start)
		return err
	}
	s.record("success", start)
	return nil
}

// Delete removes one bundle's record.
func (s *RecordStore) Delete(bundleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	records, err := s.loadLocked()
	if err != nil {
		s.record("error", start)
		return err
	}
	delete(records, bundleName)
	if err := s.rewriteLocked(records); err != nil {
		s.record("error", start)
		return err
	}
	s.record("success", start)
	return nil
}

func (s *RecordStore) rewriteLocked(records map[string]*bundle.Record) error {
	data, err := sonic.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrStoreIO, s.path, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrStoreIO, s.path, err)
	}
	return nil
}

func (s *RecordStore) record(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStoreRewrite("records", status, time.Since(start))
	}
}

// ensureFile creates an empty backing file (and its directory) when the
// store is opened for the first time.
func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", types.ErrStoreIO, path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", types.ErrStoreIO, path, err)
	}
	return f.Close()
}

// writeAtomic rewrites path through a temp file plus rename so a crash
// mid-write never leaves a truncated database.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
