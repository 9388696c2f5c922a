package bundle

import (
	"fmt"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// ComponentKey identifies one ability or extension inside a bundle.
type ComponentKey struct {
	Bundle    string `json:"bundle"`
	Module    string `json:"module"`
	Component string `json:"component"`
}

// String returns the dotted persisted form of the key.
func (k ComponentKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Bundle, k.Module, k.Component)
}

// Ability is a user-facing component declared by a module.
type Ability struct {
	Name            string   `json:"name"`
	Label           string   `json:"label,omitempty"`
	Description     string   `json:"description,omitempty"`
	Icon            string   `json:"icon,omitempty"`
	Visible         bool     `json:"visible"`
	Type            string   `json:"type,omitempty"`
	LaunchMode      string   `json:"launchMode,omitempty"`
	Orientation     string   `json:"orientation,omitempty"`
	Permissions     []string `json:"permissions,omitempty"`
	BackgroundModes uint32   `json:"backgroundModes,omitempty"`
	URI             string   `json:"uri,omitempty"`
	SrcEntrance     string   `json:"srcEntrance,omitempty"`
	Skills          []Skill  `json:"skills,omitempty"`
}

// Extension is a non-UI component declared by a module.
type Extension struct {
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Visible     bool     `json:"visible"`
	Type        string   `json:"type"`
	Permissions []string `json:"permissions,omitempty"`
	URI         string   `json:"uri,omitempty"`
	SrcEntrance string   `json:"srcEntrance,omitempty"`
	Skills      []Skill  `json:"skills,omitempty"`
}

// Form is a widget card declared by an ability.
type Form struct {
	Name            string `json:"name"`
	Ability         string `json:"ability,omitempty"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"type,omitempty"`
	IsDefault       bool   `json:"isDefault"`
	UpdateEnabled   bool   `json:"updateEnabled"`
	ScheduledUpdate string   `json:"scheduledUpdateTime,omitempty"`
	UpdateDuration  int32    `json:"updateDuration,omitempty"`
	DefaultDim      string   `json:"defaultDimension,omitempty"`
	SupportDims     []string `json:"supportDimensions,omitempty"`
}

// Shortcut is a home-screen shortcut declared by a module.
type Shortcut struct {
	ID      string        `json:"shortcutId"`
	Label   string        `json:"label,omitempty"`
	Icon    string        `json:"icon,omitempty"`
	Intents []WantMapping `json:"intents,omitempty"`
}

// WantMapping is one target a shortcut resolves to.
type WantMapping struct {
	TargetBundle string `json:"targetBundle"`
	TargetClass  string `json:"targetClass"`
}

// CommonEvent is a static broadcast subscription declared by a module.
type CommonEvent struct {
	Name       string   `json:"name"`
	Permission string   `json:"permission,omitempty"`
	Events     []string `json:"events"`
	Data       []string `json:"data,omitempty"`
	Types      []string `json:"types,omitempty"`
}

// Module is one deliverable package inside a bundle. Its abilities,
// extensions, forms, shortcuts, and common events live inside it, so
// replacing a module on upgrade swaps the whole dependent set at once.
type Module struct {
	Package             string   `json:"package"`
	Name                string   `json:"moduleName"`
	Description         string   `json:"description,omitempty"`
	Type                string   `json:"moduleType"`
	IsEntry             bool     `json:"isEntry"`
	Legacy              bool     `json:"legacySchema"`
	MainElement         string   `json:"mainElement,omitempty"`
	Pages               string   `json:"pages,omitempty"`
	DeliveryWithInstall bool     `json:"deliveryWithInstall"`
	InstallationFree    bool     `json:"installationFree"`
	DeviceTypes         []string `json:"deviceTypes,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
	RequestPermissions  []string `json:"requestPermissions,omitempty"`
	DefinePermissions   []string `json:"definePermissions,omitempty"`
	UpgradeFlag         int32    `json:"upgradeFlag,omitempty"`
	HashValue           string   `json:"hashValue,omitempty"`
	NativeLibraryPath   string   `json:"nativeLibraryPath,omitempty"`

	Abilities    []Ability     `json:"abilities,omitempty"`
	Extensions   []Extension   `json:"extensionAbilities,omitempty"`
	Forms        []Form        `json:"forms,omitempty"`
	Shortcuts    []Shortcut    `json:"shortcuts,omitempty"`
	CommonEvents []CommonEvent `json:"commonEvents,omitempty"`

	// Removable overrides removability per user. Absent means removable.
	Removable map[int32]bool `json:"removable,omitempty"`
}

// Record is the canonical per-bundle aggregate merged from every
// installed module's parsed manifest.
type Record struct {
	Name                     string `json:"name"`
	VersionCode              int32  `json:"versionCode"`
	VersionName              string `json:"versionName"`
	MinCompatibleVersionCode int32  `json:"minCompatibleVersionCode"`
	CompatibleAPIVersion     int32  `json:"compatibleVersion"`
	TargetAPIVersion         int32  `json:"targetVersion"`
	ReleaseType              string `json:"releaseType,omitempty"`
	Vendor                   string `json:"vendor,omitempty"`

	IsSystemApp       bool `json:"isSystemApp"`
	IsPreInstalled    bool `json:"isPreInstalled"`
	KeepAlive         bool `json:"keepAlive"`
	Singleton         bool `json:"singleton"`
	BundleRemovable   bool `json:"removable"`
	UserDataClearable bool `json:"userDataClearable"`
	Accessible        bool `json:"accessible"`
	DebugMode         bool `json:"debug,omitempty"`

	// CpuAbi and NativeLibraryPath describe the resolved native layout.
	CpuAbi            string `json:"cpuAbi,omitempty"`
	NativeLibraryPath string `json:"nativeLibraryPath,omitempty"`

	// EntryModuleName names the module marked entry; MainEntryAbility is
	// the dotted key of the ability launched from the home screen.
	EntryModuleName  string `json:"entryModuleName,omitempty"`
	MainEntryAbility string `json:"mainEntryAbility,omitempty"`
	IsLauncherApp    bool   `json:"isLauncherApp"`

	AppDataDir  string `json:"appDataDir,omitempty"`
	CodePath    string `json:"codePath,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`

	InstallMark types.InstallMark `json:"installMark"`

	Modules map[string]*Module `json:"modules"`

	SandboxInfos []types.SandboxPersistentInfo `json:"sandboxInfos,omitempty"`

	// Users is per-user state, persisted by the user-state store rather
	// than the record store.
	Users map[int32]*types.UserState `json:"-"`
}

// NewRecord creates an empty aggregate for one bundle name.
func NewRecord(name string) *Record {
	return &Record{
		Name:              name,
		BundleRemovable:   true,
		UserDataClearable: true,
		Modules:           make(map[string]*Module),
		Users:             make(map[int32]*types.UserState),
	}
}

// AddModule inserts a new module. It fails if a module with the same
// package name is already present.
func (r *Record) AddModule(m *Module) bool {
	if r.Modules == nil {
		r.Modules = make(map[string]*Module)
	}
	if _, exists := r.Modules[m.Package]; exists {
		return false
	}
	r.Modules[m.Package] = m
	if m.IsEntry {
		r.EntryModuleName = m.Package
	}
	return true
}

// UpdateModule replaces an existing module wholesale, so no ability,
// skill, or form from the prior version survives the upgrade.
func (r *Record) UpdateModule(m *Module) error {
	old, exists := r.Modules[m.Package]
	if !exists {
		return fmt.Errorf("%w: module %s in bundle %s", types.ErrModuleNotFound, m.Package, r.Name)
	}
	if old.IsEntry && !m.IsEntry && r.EntryModuleName == old.Package {
		r.EntryModuleName = ""
		r.MainEntryAbility = ""
	}
	r.Modules[m.Package] = m
	if m.IsEntry {
		r.EntryModuleName = m.Package
	}
	return nil
}

// RemoveModule deletes a module and everything it owns. Removing the
// entry module clears the bundle's main-entry fields.
func (r *Record) RemoveModule(modulePackage string) error {
	m, exists := r.Modules[modulePackage]
	if !exists {
		return fmt.Errorf("%w: module %s in bundle %s", types.ErrModuleNotFound, modulePackage, r.Name)
	}
	delete(r.Modules, modulePackage)
	if m.IsEntry && r.EntryModuleName == modulePackage {
		r.EntryModuleName = ""
		r.MainEntryAbility = ""
	}
	return nil
}

// FindModule returns the module with the given package name.
func (r *Record) FindModule(modulePackage string) (*Module, bool) {
	m, ok := r.Modules[modulePackage]
	return m, ok
}

// FindModuleByName returns the module whose distro/module name matches.
func (r *Record) FindModuleByName(moduleName string) (*Module, bool) {
	for _, m := range r.Modules {
		if m.Name == moduleName {
			return m, true
		}
	}
	return nil, false
}

// FindAbility returns the named ability and the module that owns it.
func (r *Record) FindAbility(moduleName, abilityName string) (*Ability, *Module, error) {
	for _, m := range r.Modules {
		if moduleName != "" && m.Name != moduleName && m.Package != moduleName {
			continue
		}
		for i := range m.Abilities {
			if m.Abilities[i].Name == abilityName {
				return &m.Abilities[i], m, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %s in bundle %s", types.ErrAbilityNotFound, abilityName, r.Name)
}

// FindExtension returns the named extension and the module that owns it.
func (r *Record) FindExtension(moduleName, extensionName string) (*Extension, *Module, error) {
	for _, m := range r.Modules {
		if moduleName != "" && m.Name != moduleName && m.Package != moduleName {
			continue
		}
		for i := range m.Extensions {
			if m.Extensions[i].Name == extensionName {
				return &m.Extensions[i], m, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %s in bundle %s", types.ErrExtensionNotFound, extensionName, r.Name)
}

// GetAllDependentModuleNames walks the dependency edges breadth-first
// from moduleName and returns every reachable module name once, in
// visit order. A cycle terminates via the visited set.
func (r *Record) GetAllDependentModuleNames(moduleName string) []string {
	start, ok := r.FindModuleByName(moduleName)
	if !ok {
		if start, ok = r.FindModule(moduleName); !ok {
			return nil
		}
	}

	visited := map[string]bool{start.Name: true}
	result := []string{}
	queue := append([]string(nil), start.Dependencies...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		result = append(result, name)
		if dep, ok := r.FindModuleByName(name); ok {
			queue = append(queue, dep.Dependencies...)
		}
	}
	return result
}

// IsRemovable reports whether the bundle may be uninstalled for userID.
// Preinstalled system bundles are never removable; otherwise every
// module's per-user flag must allow it (absent means allowed).
func (r *Record) IsRemovable(userID int32) bool {
	if r.IsPreInstalled {
		return false
	}
	if !r.BundleRemovable {
		return false
	}
	for _, m := range r.Modules {
		if v, ok := m.Removable[userID]; ok && !v {
			return false
		}
	}
	return true
}

// SetModuleRemovable records a per-user removability override.
func (r *Record) SetModuleRemovable(moduleName string, userID int32, removable bool) error {
	m, ok := r.FindModuleByName(moduleName)
	if !ok {
		return fmt.Errorf("%w: module %s in bundle %s", types.ErrModuleNotFound, moduleName, r.Name)
	}
	if m.Removable == nil {
		m.Removable = make(map[int32]bool)
	}
	m.Removable[userID] = removable
	return nil
}

// SetUpgradeFlag marks a module as having an upgrade pending.
func (r *Record) SetUpgradeFlag(moduleName string, flag int32) error {
	m, ok := r.FindModuleByName(moduleName)
	if !ok {
		return fmt.Errorf("%w: module %s in bundle %s", types.ErrModuleNotFound, moduleName, r.Name)
	}
	m.UpgradeFlag = flag
	return nil
}

// GetUserState returns the state for one user, or for the first user
// present when userID is the any-user sentinel.
func (r *Record) GetUserState(userID int32) (*types.UserState, bool) {
	if userID == types.UserIDAny {
		for _, s := range r.Users {
			return s, true
		}
		return nil, false
	}
	s, ok := r.Users[userID]
	return s, ok
}

// AddUserState records per-user installation state.
func (r *Record) AddUserState(s *types.UserState) {
	if r.Users == nil {
		r.Users = make(map[int32]*types.UserState)
	}
	r.Users[s.UserID] = s
}

// RemoveUserState drops the state for one user. It reports whether any
// users remain installed afterwards.
func (r *Record) RemoveUserState(userID int32) bool {
	delete(r.Users, userID)
	return len(r.Users) > 0
}

// AddSandboxInfo records one sandboxed clone of this bundle.
func (r *Record) AddSandboxInfo(info types.SandboxPersistentInfo) {
	r.SandboxInfos = append(r.SandboxInfos, info)
}

// RemoveSandboxInfo drops the clone with the given app index for a
// user. UserIDAny drops the index for every user.
func (r *Record) RemoveSandboxInfo(userID int32, appIndex int32) {
	kept := r.SandboxInfos[:0]
	for _, info := range r.SandboxInfos {
		if info.AppIndex == appIndex && (userID == types.UserIDAny || info.UserID == userID) {
			continue
		}
		kept = append(kept, info)
	}
	r.SandboxInfos = kept
}

// MarkInstall updates the transient install mark used for crash recovery.
func (r *Record) MarkInstall(modulePackage string, status types.InstallStatus) {
	r.InstallMark = types.InstallMark{
		BundleName: r.Name,
		Package:    modulePackage,
		Status:     status,
	}
}
