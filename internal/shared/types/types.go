package types

// UserIDAny is the sentinel user id meaning "any installed user".
const UserIDAny = -1

// DefaultUserID is the primary on-device user.
const DefaultUserID = 100

// UserState holds per-(bundle, user) installation state. It is persisted
// separately from the bundle record, keyed by <bundleName>_<userId>.
type UserState struct {
	BundleName        string   `json:"bundleName"`
	UserID            int32    `json:"userId"`
	Enabled           bool     `json:"enabled"`
	DisabledAbilities []string `json:"disabledAbilities,omitempty"`
	AccessTokenID     uint32   `json:"accessTokenId"`
	UID               int32    `json:"uid"`
	GIDs              []int32  `json:"gids,omitempty"`
	InstallTime       int64    `json:"installTime"`
	UpdateTime        int64    `json:"updateTime"`
}

// IsAbilityEnabled reports whether the named ability is enabled for this user.
func (u *UserState) IsAbilityEnabled(abilityName string) bool {
	for _, name := range u.DisabledAbilities {
		if name == abilityName {
			return false
		}
	}
	return true
}

// SandboxPersistentInfo records one sandboxed (isolated, cloned) instance
// of an installed bundle.
type SandboxPersistentInfo struct {
	AccessTokenID uint32 `json:"accessTokenId"`
	AppIndex      int32  `json:"appIndex"`
	UserID        int32  `json:"userId"`
}

// InstallStatus tracks where an in-flight install operation stands, so a
// crash mid-install can be detected and reconciled at next start.
type InstallStatus string

const (
	InstallStart          InstallStatus = "install_start"
	InstallFinish         InstallStatus = "install_finish"
	UpdatingNewStart      InstallStatus = "updating_new_start"
	UpdatingExistedStart  InstallStatus = "updating_existed_start"
	UpdatingFinish        InstallStatus = "updating_finish"
	UninstallBundleStart  InstallStatus = "uninstall_bundle_start"
	UninstallPackageStart InstallStatus = "uninstall_package_start"
)

// InstallMark is the transient record of an in-progress install.
type InstallMark struct {
	BundleName string        `json:"bundleName"`
	Package    string        `json:"package"`
	Status     InstallStatus `json:"status"`
}

// GetFlag is a bitmask selecting optional fields on BundleInfo projections.
type GetFlag uint32

const (
	GetBundleDefault         GetFlag = 0
	GetBundleWithAbilities   GetFlag = 1 << 0
	GetBundleWithExtensions  GetFlag = 1 << 1
	GetBundleWithPermissions GetFlag = 1 << 2
	GetBundleWithHash        GetFlag = 1 << 3
)

// Want is an intent-like query matched against declared component skills.
// An empty Action matches any skill that declares at least one action.
type Want struct {
	Bundle   string   `json:"bundle,omitempty"`
	Ability  string   `json:"ability,omitempty"`
	Action   string   `json:"action,omitempty"`
	Entities []string `json:"entities,omitempty"`
	URI      string   `json:"uri,omitempty"`
	Type     string   `json:"type,omitempty"`
}

// AbilityInfo is the caller-facing view of one ability.
type AbilityInfo struct {
	Name            string   `json:"name"`
	BundleName      string   `json:"bundleName"`
	ModuleName      string   `json:"moduleName"`
	Label           string   `json:"label,omitempty"`
	Description     string   `json:"description,omitempty"`
	IconPath        string   `json:"iconPath,omitempty"`
	Type            string   `json:"type"`
	LaunchMode      string   `json:"launchMode,omitempty"`
	URI             string   `json:"uri,omitempty"`
	Visible         bool     `json:"visible"`
	Permissions     []string `json:"permissions,omitempty"`
	BackgroundModes uint32   `json:"backgroundModes,omitempty"`
	Process         string   `json:"process,omitempty"`
	LauncherAbility bool     `json:"launcherAbility,omitempty"`
	Enabled         bool     `json:"enabled"`
}

// ExtensionInfo is the caller-facing view of one extension ability.
type ExtensionInfo struct {
	Name        string   `json:"name"`
	BundleName  string   `json:"bundleName"`
	ModuleName  string   `json:"moduleName"`
	Type        string   `json:"type"`
	URI         string   `json:"uri,omitempty"`
	Visible     bool     `json:"visible"`
	Permissions []string `json:"permissions,omitempty"`
	Process     string   `json:"process,omitempty"`
	Priority    int32    `json:"priority,omitempty"`
}

// ModuleInfo is the caller-facing view of one installed module.
type ModuleInfo struct {
	ModuleName string `json:"moduleName"`
	Package    string `json:"package"`
	ModuleType string `json:"moduleType"`
	Entry      bool   `json:"entry"`
	SourceDir  string `json:"sourceDir,omitempty"`
}

// BundleInfo projects the bundle aggregate for callers; optional slices are
// populated according to the GetFlag bitmask used on the query.
type BundleInfo struct {
	Name                     string          `json:"name"`
	VersionCode              uint32          `json:"versionCode"`
	VersionName              string          `json:"versionName"`
	MinCompatibleVersionCode int32           `json:"minCompatibleVersionCode"`
	CompatibleVersion        int32           `json:"compatibleVersion"`
	TargetVersion            int32           `json:"targetVersion"`
	ReleaseType              string          `json:"releaseType,omitempty"`
	Vendor                   string          `json:"vendor,omitempty"`
	Label                    string          `json:"label,omitempty"`
	MainEntry                string          `json:"mainEntry,omitempty"`
	EntryModuleName          string          `json:"entryModuleName,omitempty"`
	KeepAlive                bool            `json:"keepAlive"`
	Singleton                bool            `json:"singleton"`
	PreInstalled             bool            `json:"preInstalled"`
	SystemApp                bool            `json:"systemApp"`
	Removable                bool            `json:"removable"`
	NativeLibraryPath        string          `json:"nativeLibraryPath,omitempty"`
	CPUAbi                   string          `json:"cpuAbi,omitempty"`
	Modules                  []ModuleInfo    `json:"modules,omitempty"`
	Abilities                []AbilityInfo   `json:"abilities,omitempty"`
	Extensions               []ExtensionInfo `json:"extensions,omitempty"`
	Permissions              []string        `json:"permissions,omitempty"`
	PackageHash              string          `json:"packageHash,omitempty"`

	// Per-user fields; absent (zero) when the record has no state for the
	// requested user.
	UID           int32  `json:"uid,omitempty"`
	GID           int32  `json:"gid,omitempty"`
	AccessTokenID uint32 `json:"accessTokenId,omitempty"`
	InstallTime   int64  `json:"installTime,omitempty"`
	UpdateTime    int64  `json:"updateTime,omitempty"`
	Enabled       bool   `json:"enabled"`
}

// BundleStats is the five-element disk usage vector of one installed
// bundle for one user. Order is part of the contract.
type BundleStats struct {
	CodeSize            int64 `json:"codeSize"`
	LocalDataSize       int64 `json:"localDataSize"`
	DistributedFileSize int64 `json:"distributedFileSize"`
	DatabaseSize        int64 `json:"databaseSize"`
	CacheSize           int64 `json:"cacheSize"`
}

// Vector returns the stats in contract order.
func (s BundleStats) Vector() [5]int64 {
	return [5]int64{s.CodeSize, s.LocalDataSize, s.DistributedFileSize, s.DatabaseSize, s.CacheSize}
}
