package paths

import (
	"path/filepath"
	"strconv"
)

// Encryption-level domains. EL1 is available at boot; EL2 only after the
// user's credential unlock.
const (
	EL1 = "el1"
	EL2 = "el2"
	EL3 = "el3"
	EL4 = "el4"
)

// Roots
const (
	// AppRoot is the root of all application storage.
	AppRoot = "/data/app"

	// CodeRoot holds installed bundle code, shared by all users.
	CodeRoot = "/data/app/el1/bundle/public"

	// ServiceRoot is the service-private directory holding the record and
	// user-state databases.
	ServiceRoot = "/data/service/el1/public/bms"

	// DistributedFileRoot holds per-user distributed-file shares.
	DistributedFileRoot = "/mnt/hmdfs"
)

// Database file names under ServiceRoot.
const (
	BundleRecordFile = "bundle_records.json"
	UserStateFile    = "bundle_user_states.json"
)

// Fixed sub-tree created under every el2 base data directory.
var BaseDataSubDirs = []string{
	"cache",
	"files",
	"temp",
	"preferences",
	"haps",
	filepath.Join(EL3, "base"),
	filepath.Join(EL4, "base"),
}

// TmpSuffix marks a module directory still being extracted.
const TmpSuffix = "_tmp"

// BundleCodeDir returns the code directory of one bundle.
func BundleCodeDir(codeRoot, bundleName string) string {
	return filepath.Join(codeRoot, bundleName)
}

// ModuleDir returns the code directory of one module package.
func ModuleDir(codeRoot, bundleName, modulePackage string) string {
	return filepath.Join(codeRoot, bundleName, modulePackage)
}

// BaseDataDir returns <dataRoot>/<el>/<userId>/base.
func BaseDataDir(dataRoot, el string, userID int32) string {
	return filepath.Join(dataRoot, el, strconv.Itoa(int(userID)), "base")
}

// BundleDataDir returns <dataRoot>/<el>/<userId>/base/<bundleName>.
func BundleDataDir(dataRoot, el string, userID int32, bundleName string) string {
	return filepath.Join(BaseDataDir(dataRoot, el, userID), bundleName)
}

// ModuleDataDir returns the per-module subdirectory of a bundle data dir.
func ModuleDataDir(dataRoot, el string, userID int32, bundleName, moduleName string) string {
	return filepath.Join(BundleDataDir(dataRoot, el, userID, bundleName), "haps", moduleName)
}

// DatabaseDir returns <dataRoot>/<el>/<userId>/database/<bundleName>.
func DatabaseDir(dataRoot, el string, userID int32, bundleName string) string {
	return filepath.Join(dataRoot, el, strconv.Itoa(int(userID)), "database", bundleName)
}

// CacheDir returns the cache subtree of a bundle's el2 data dir.
func CacheDir(dataRoot string, userID int32, bundleName string) string {
	return filepath.Join(BundleDataDir(dataRoot, EL2, userID, bundleName), "cache")
}

// DistributedAccountDir returns the per-account distributed-file directory.
func DistributedAccountDir(distRoot string, userID int32, bundleName string) string {
	return filepath.Join(distRoot, strconv.Itoa(int(userID)), "account", "data", bundleName)
}

// DistributedNonAccountDir returns the non-account distributed-file directory.
func DistributedNonAccountDir(distRoot string, userID int32, bundleName string) string {
	return filepath.Join(distRoot, strconv.Itoa(int(userID)), "non_account", "data", bundleName)
}
