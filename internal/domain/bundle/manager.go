package bundle

import (
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
	"go.uber.org/zap"
)

// RecordStore persists bundle records keyed by bundle name.
type RecordStore interface {
	LoadAll() (map[string]*Record, error)
	Save(r *Record) error
	Delete(bundleName string) error
}

// StateStore persists per-(bundle, user) installation state.
type StateStore interface {
	LoadAll() (map[string]*types.UserState, error)
	Save(s *types.UserState) error
	Delete(bundleName string, userID int32) error
}

// DataMgr owns every installed bundle's in-memory aggregate and keeps
// the two backing stores in sync with it.
type DataMgr struct {
	mu      sync.RWMutex
	bundles map[string]*Record // Protected by mu

	records RecordStore
	states  StateStore
	baseUID int32

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewDataMgr creates a data manager over the given stores.
func NewDataMgr(records RecordStore, states StateStore, baseUID int32, logger *logging.Logger) *DataMgr {
	return &DataMgr{
		bundles: make(map[string]*Record),
		records: records,
		states:  states,
		baseUID: baseUID,
		logger:  logger,
	}
}

// WithMetrics adds metrics tracking to the manager.
func (d *DataMgr) WithMetrics(metrics *monitoring.Metrics) *DataMgr {
	d.metrics = metrics
	return d
}

// LoadFromStores replaces the in-memory aggregates with the persisted
// records and reattaches each user state to its owning bundle.
func (d *DataMgr) LoadFromStores() error {
	recs, err := d.records.LoadAll()
	if err != nil {
		return fmt.Errorf("load bundle records: %w", err)
	}
	states, err := d.states.LoadAll()
	if err != nil {
		return fmt.Errorf("load user states: %w", err)
	}

	for _, r := range recs {
		if r.Users == nil {
			r.Users = make(map[int32]*types.UserState)
		}
	}
	orphans := 0
	for key, s := range states {
		r, ok := recs[s.BundleName]
		if !ok {
			orphans++
			d.logger.Warn("dropping orphan user state", zap.String("key", key))
			continue
		}
		r.Users[s.UserID] = s
	}

	d.mu.Lock()
	d.bundles = recs
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetBundlesInstalled(len(recs))
	}
	d.logger.Info("bundle data loaded",
		zap.Int("bundles", len(recs)),
		zap.Int("user_states", len(states)),
		zap.Int("orphan_states", orphans))
	return nil
}

// Get returns one bundle's aggregate.
func (d *DataMgr) Get(bundleName string) (*Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	return r, ok
}

// Names returns the installed bundle names.
func (d *DataMgr) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.bundles))
	for name := range d.bundles {
		names = append(names, name)
	}
	return names
}

// Count returns the number of installed bundles.
func (d *DataMgr) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.bundles)
}

// Put inserts or replaces a bundle aggregate and persists it, along
// with every attached user state.
func (d *DataMgr) Put(r *Record) error {
	if err := d.records.Save(r); err != nil {
		return err
	}
	for _, s := range r.Users {
		if err := d.states.Save(s); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.bundles[r.Name] = r
	count := len(d.bundles)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetBundlesInstalled(count)
	}
	return nil
}

// SaveRecord persists an already-registered bundle's record after an
// in-place mutation.
func (d *DataMgr) SaveRecord(r *Record) error {
	return d.records.Save(r)
}

// MutateRecord applies fn to a live record under the write lock, then
// persists the record. Readers never observe a half-applied mutation.
// fn must not call back into the manager.
func (d *DataMgr) MutateRecord(bundleName string, fn func(*Record) error) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if err := fn(r); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()
	return d.records.Save(r)
}

// Remove deletes a bundle's aggregate, its record, and all of its
// persisted user states.
func (d *DataMgr) Remove(bundleName string) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if ok {
		delete(d.bundles, bundleName)
	}
	count := len(d.bundles)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}

	for userID := range r.Users {
		if err := d.states.Delete(bundleName, userID); err != nil {
			d.logger.Warn("failed to delete user state",
				zap.String("bundle", bundleName), zap.Int32("user", userID), zap.Error(err))
		}
	}
	if err := d.records.Delete(bundleName); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.SetBundlesInstalled(count)
	}
	return nil
}

// SaveUserState persists one user state and attaches it to the bundle.
func (d *DataMgr) SaveUserState(s *types.UserState) error {
	d.mu.RLock()
	r, ok := d.bundles[s.BundleName]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, s.BundleName)
	}
	if err := d.states.Save(s); err != nil {
		return err
	}
	d.mu.Lock()
	r.AddUserState(s)
	d.mu.Unlock()
	return nil
}

// RemoveUserState detaches and deletes one user's state. It reports
// whether the bundle remains installed for any other user.
func (d *DataMgr) RemoveUserState(bundleName string, userID int32) (bool, error) {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return false, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	remaining := r.RemoveUserState(userID)
	d.mu.Unlock()

	if err := d.states.Delete(bundleName, userID); err != nil {
		return remaining, err
	}
	return remaining, nil
}

// AllocateUID hands out the next free per-bundle UID at or above the
// configured base.
func (d *DataMgr) AllocateUID() int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	next := d.baseUID
	for _, r := range d.bundles {
		for _, s := range r.Users {
			if s.UID >= next {
				next = s.UID + 1
			}
		}
	}
	return next
}

// GetBundleInfo projects one bundle for a caller.
func (d *DataMgr) GetBundleInfo(bundleName string, flags types.GetFlag, userID int32) (types.BundleInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	if !ok {
		return types.BundleInfo{}, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if userID != types.UserIDAny {
		if _, installed := r.Users[userID]; !installed && len(r.Users) > 0 {
			return types.BundleInfo{}, fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
		}
	}
	return r.GetBundleInfo(flags, userID), nil
}

// GetAllBundleInfos projects every installed bundle visible to userID.
func (d *DataMgr) GetAllBundleInfos(flags types.GetFlag, userID int32) []types.BundleInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	infos := make([]types.BundleInfo, 0, len(d.bundles))
	for _, r := range d.bundles {
		if userID != types.UserIDAny {
			if _, installed := r.Users[userID]; !installed {
				continue
			}
		}
		infos = append(infos, r.GetBundleInfo(flags, userID))
	}
	return infos
}

// QueryAbilities returns every ability whose declared skills match the
// query for userID. A want naming a bundle restricts the search; a want
// naming an ability matches by name instead of by skill.
func (d *DataMgr) QueryAbilities(want types.Want, userID int32) []types.AbilityInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []types.AbilityInfo
	for _, r := range d.bundles {
		if want.Bundle != "" && r.Name != want.Bundle {
			continue
		}
		state, hasState := r.GetUserState(userID)
		if userID != types.UserIDAny && !hasState {
			continue
		}
		for _, m := range r.Modules {
			for i := range m.Abilities {
				a := &m.Abilities[i]
				if want.Ability != "" {
					if a.Name == want.Ability {
						matches = append(matches, r.abilityInfo(m, a, state))
					}
					continue
				}
				if matchSkills(a.Skills, want) {
					matches = append(matches, r.abilityInfo(m, a, state))
				}
			}
		}
	}
	return matches
}

// QueryExtensions returns every extension whose skills match the query.
func (d *DataMgr) QueryExtensions(want types.Want, userID int32) []types.ExtensionInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []types.ExtensionInfo
	for _, r := range d.bundles {
		if want.Bundle != "" && r.Name != want.Bundle {
			continue
		}
		if userID != types.UserIDAny {
			if _, installed := r.Users[userID]; !installed {
				continue
			}
		}
		for _, m := range r.Modules {
			for i := range m.Extensions {
				e := &m.Extensions[i]
				if matchSkills(e.Skills, want) {
					matches = append(matches, types.ExtensionInfo{
						Name:        e.Name,
						BundleName:  r.Name,
						ModuleName:  m.Name,
						Type:        e.Type,
						URI:         e.URI,
						Visible:     e.Visible,
						Permissions: e.Permissions,
					})
				}
			}
		}
	}
	return matches
}

func matchSkills(skills []Skill, want types.Want) bool {
	for _, s := range skills {
		if s.Match(want) {
			return true
		}
	}
	return false
}

// SetApplicationEnabled flips the enabled flag for one user and persists
// the change.
func (d *DataMgr) SetApplicationEnabled(bundleName string, userID int32, enabled bool) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	s, installed := r.Users[userID]
	if !installed {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
	}
	s.Enabled = enabled
	d.mu.Unlock()
	return d.states.Save(s)
}

// IsApplicationEnabled reports the enabled flag for one user.
func (d *DataMgr) IsApplicationEnabled(bundleName string, userID int32) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	s, installed := r.Users[userID]
	if !installed {
		return false, fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
	}
	return s.Enabled, nil
}

// SetAbilityEnabled enables or disables one ability for one user.
func (d *DataMgr) SetAbilityEnabled(bundleName, abilityName string, userID int32, enabled bool) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if _, _, err := r.FindAbility("", abilityName); err != nil {
		d.mu.Unlock()
		return err
	}
	s, installed := r.Users[userID]
	if !installed {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
	}
	filtered := s.DisabledAbilities[:0]
	for _, name := range s.DisabledAbilities {
		if name != abilityName {
			filtered = append(filtered, name)
		}
	}
	s.DisabledAbilities = filtered
	if !enabled {
		s.DisabledAbilities = append(s.DisabledAbilities, abilityName)
	}
	d.mu.Unlock()
	return d.states.Save(s)
}

// IsAbilityEnabled reports one ability's enabled flag for one user.
func (d *DataMgr) IsAbilityEnabled(bundleName, abilityName string, userID int32) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if _, _, err := r.FindAbility("", abilityName); err != nil {
		return false, err
	}
	s, installed := r.Users[userID]
	if !installed {
		return false, fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
	}
	return s.IsAbilityEnabled(abilityName), nil
}

// SetModuleUpgradeFlag marks a module as pending an OTA refresh and
// persists the record.
func (d *DataMgr) SetModuleUpgradeFlag(bundleName, moduleName string, flag int32) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if err := r.SetUpgradeFlag(moduleName, flag); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()
	return d.records.Save(r)
}

// GetModuleUpgradeFlag reads a module's pending-upgrade flag.
func (d *DataMgr) GetModuleUpgradeFlag(bundleName, moduleName string) (int32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	m, ok := r.FindModuleByName(moduleName)
	if !ok {
		return 0, fmt.Errorf("%w: %s in %s", types.ErrModuleNotFound, moduleName, bundleName)
	}
	return m.UpgradeFlag, nil
}

// AddSandboxInfo records a sandboxed clone of a bundle and persists it.
func (d *DataMgr) AddSandboxInfo(bundleName string, info types.SandboxPersistentInfo) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	r.AddSandboxInfo(info)
	d.mu.Unlock()
	return d.records.Save(r)
}

// RemoveSandboxInfo drops a sandboxed clone by user and app index.
func (d *DataMgr) RemoveSandboxInfo(bundleName string, userID, appIndex int32) error {
	d.mu.Lock()
	r, ok := d.bundles[bundleName]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	r.RemoveSandboxInfo(userID, appIndex)
	d.mu.Unlock()
	return d.records.Save(r)
}

// SandboxInfos lists the sandboxed clones of a bundle for one user.
// UserIDAny returns all of them.
func (d *DataMgr) SandboxInfos(bundleName string, userID int32) ([]types.SandboxPersistentInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.bundles[bundleName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	var infos []types.SandboxPersistentInfo
	for _, info := range r.SandboxInfos {
		if userID == types.UserIDAny || info.UserID == userID {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// PendingInstalls returns every bundle whose install mark shows an
// operation that never reached its finish state. Used by the recovery
// pass at service start.
func (d *DataMgr) PendingInstalls() []types.InstallMark {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var marks []types.InstallMark
	for _, r := range d.bundles {
		switch r.InstallMark.Status {
		case "", types.InstallFinish, types.UpdatingFinish:
		default:
			marks = append(marks, r.InstallMark)
		}
	}
	return marks
}

// UserKey builds the persisted `<bundleName>_<userId>` store key.
func UserKey(bundleName string, userID int32) string {
	return fmt.Sprintf("%s_%d", bundleName, userID)
}

// ParseUserKey splits a persisted store key back into its parts.
func ParseUserKey(key string) (string, int32, error) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", 0, fmt.Errorf("malformed user-state key %q", key)
	}
	var userID int32
	if _, err := fmt.Sscanf(key[idx+1:], "%d", &userID); err != nil {
		return "", 0, fmt.Errorf("malformed user-state key %q: %w", key, err)
	}
	return key[:idx], userID, nil
}
