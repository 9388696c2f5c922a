package types

import "errors"

// Sentinel errors for the core taxonomy. Callers match with errors.Is;
// additional context is layered with fmt.Errorf("...: %w", err).
var (
	// Parse errors
	ErrBadProfile       = errors.New("profile: manifest is not valid or violates schema")
	ErrProfilePropCheck = errors.New("profile: required property failed validation")

	// Privileged installer errors
	ErrInstalldParam     = errors.New("installd: invalid parameter")
	ErrCreateDirFailed   = errors.New("installd: create dir failed")
	ErrRemoveDirFailed   = errors.New("installd: remove dir failed")
	ErrCleanDirFailed    = errors.New("installd: clean dir failed")
	ErrRenameDirFailed   = errors.New("installd: rename dir failed")
	ErrDiskInsufficient  = errors.New("installd: extract failed, disk insufficient")
	ErrSetDirAplFailed   = errors.New("installd: set dir apl failed")
	ErrGetStatsFailed    = errors.New("installd: get bundle stats failed")

	// Aggregate / store errors
	ErrBundleNotFound    = errors.New("bundle not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrAbilityNotFound   = errors.New("ability not found")
	ErrExtensionNotFound = errors.New("extension not found")
	ErrUserNotInstalled  = errors.New("bundle not installed for user")
	ErrModuleExists      = errors.New("module package already exists")
	ErrNotRemovable      = errors.New("bundle is not removable")
	ErrVersionDowngrade  = errors.New("version code lower than installed bundle")
	ErrStoreIO           = errors.New("store: read or write failed")
)

// ErrCode is the numeric result code carried across the operation surface.
type ErrCode int32

const (
	CodeOK ErrCode = iota
	CodeBadProfile
	CodeProfilePropCheck
	CodeInstalldParam
	CodeCreateDirFailed
	CodeRemoveDirFailed
	CodeCleanDirFailed
	CodeRenameDirFailed
	CodeDiskInsufficient
	CodeSetDirAplFailed
	CodeGetStatsFailed
	CodeBundleNotFound
	CodeModuleNotFound
	CodeUserNotInstalled
	CodeModuleExists
	CodeNotRemovable
	CodeVersionDowngrade
	CodeStoreIO
	CodeInternal
)

var codeTable = []struct {
	err  error
	code ErrCode
}{
	{ErrBadProfile, CodeBadProfile},
	{ErrProfilePropCheck, CodeProfilePropCheck},
	{ErrInstalldParam, CodeInstalldParam},
	{ErrCreateDirFailed, CodeCreateDirFailed},
	{ErrRemoveDirFailed, CodeRemoveDirFailed},
	{ErrCleanDirFailed, CodeCleanDirFailed},
	{ErrRenameDirFailed, CodeRenameDirFailed},
	{ErrDiskInsufficient, CodeDiskInsufficient},
	{ErrSetDirAplFailed, CodeSetDirAplFailed},
	{ErrGetStatsFailed, CodeGetStatsFailed},
	{ErrBundleNotFound, CodeBundleNotFound},
	{ErrModuleNotFound, CodeModuleNotFound},
	{ErrUserNotInstalled, CodeUserNotInstalled},
	{ErrModuleExists, CodeModuleExists},
	{ErrNotRemovable, CodeNotRemovable},
	{ErrVersionDowngrade, CodeVersionDowngrade},
	{ErrStoreIO, CodeStoreIO},
}

var codeNames = map[ErrCode]string{
	CodeOK:               "ok",
	CodeBadProfile:       "bad_profile",
	CodeProfilePropCheck: "profile_prop_check",
	CodeInstalldParam:    "installd_param",
	CodeCreateDirFailed:  "create_dir_failed",
	CodeRemoveDirFailed:  "remove_dir_failed",
	CodeCleanDirFailed:   "clean_dir_failed",
	CodeRenameDirFailed:  "rename_dir_failed",
	CodeDiskInsufficient: "disk_insufficient",
	CodeSetDirAplFailed:  "set_dir_apl_failed",
	CodeGetStatsFailed:   "get_stats_failed",
	CodeBundleNotFound:   "bundle_not_found",
	CodeModuleNotFound:   "module_not_found",
	CodeUserNotInstalled: "user_not_installed",
	CodeModuleExists:     "module_exists",
	CodeNotRemovable:     "not_removable",
	CodeVersionDowngrade: "version_downgrade",
	CodeStoreIO:          "store_io",
	CodeInternal:         "internal",
}

// String returns the stable label used in logs and metrics.
func (c ErrCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "internal"
}

// CodeOf maps an error chain to its result code.
func CodeOf(err error) ErrCode {
	if err == nil {
		return CodeOK
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
