package installd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/BundleOS/backend/internal/extractor"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
	"go.uber.org/zap"
)

// AplNormal is the default security label applied when none is given.
const AplNormal = "normal"

// Config fixes the roots and ownership constants the daemon operates
// with.
type Config struct {
	CodeRoot       string
	DataRoot       string
	DistRoot       string
	DistributedFS  bool
	DatabaseGID    int32
	DistributedGID int32
}

// Installd performs the privileged filesystem operations behind
// install, uninstall, and cache management. Every operation takes
// already-validated plain identifiers, never archive paths or
// user-controlled JSON.
type Installd struct {
	cfg     Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates the privileged installer.
func New(cfg Config, logger *logging.Logger) *Installd {
	return &Installd{cfg: cfg, logger: logger}
}

// WithMetrics adds metrics tracking.
func (d *Installd) WithMetrics(metrics *monitoring.Metrics) *Installd {
	d.metrics = metrics
	return d
}

func (d *Installd) record(op string, err error) {
	if d.metrics == nil {
		return
	}
	if err != nil {
		d.metrics.RecordInstalldOp(op, "error")
		d.metrics.RecordInstalldError(op, types.CodeOf(err).String())
		return
	}
	d.metrics.RecordInstalldOp(op, "success")
}

// CreateBundleDir creates a clean bundle code directory, forcibly
// removing any leftover tree at the same path first.
func (d *Installd) CreateBundleDir(path string) (err error) {
	defer func() { d.record("create_bundle_dir", err) }()
	if path == "" {
		return fmt.Errorf("%w: empty bundle dir", types.ErrInstalldParam)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err = os.RemoveAll(path); err != nil {
			return fmt.Errorf("%w: clear %s: %v", types.ErrCreateDirFailed, path, err)
		}
	}
	if err = os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", types.ErrCreateDirFailed, path, err)
	}
	return nil
}

// ExtractModuleFiles unpacks a module package into targetPath and its
// native libraries for abi into targetSoPath. On any extraction failure
// the partially-written target is deleted and the error is reported as
// insufficient disk, the dominant cause for this step.
func (d *Installd) ExtractModuleFiles(srcModulePath, targetPath, targetSoPath, abi string) (err error) {
	defer func() { d.record("extract_module", err) }()
	if srcModulePath == "" || targetPath == "" {
		return fmt.Errorf("%w: empty extract path", types.ErrInstalldParam)
	}

	e, openErr := extractor.Open(srcModulePath)
	if openErr != nil {
		err = openErr
		return err
	}
	defer e.Close()

	if err = os.MkdirAll(targetPath, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", types.ErrCreateDirFailed, targetPath, err)
	}
	if extractErr := e.ExtractTo(targetPath); extractErr != nil {
		os.RemoveAll(targetPath)
		err = fmt.Errorf("%w: extract %s: %v", types.ErrDiskInsufficient, srcModulePath, extractErr)
		return err
	}

	if targetSoPath != "" && abi != "" && e.HasDir("libs/"+abi) {
		if err = os.MkdirAll(targetSoPath, 0o755); err != nil {
			os.RemoveAll(targetPath)
			return fmt.Errorf("%w: mkdir %s: %v", types.ErrCreateDirFailed, targetSoPath, err)
		}
		if soErr := e.ExtractSubtree("libs/"+abi, targetSoPath); soErr != nil {
			os.RemoveAll(targetPath)
			err = fmt.Errorf("%w: extract libs/%s: %v", types.ErrDiskInsufficient, abi, soErr)
			return err
		}
	}
	return nil
}

// RenameModuleDir moves an extracted temp module directory into place.
func (d *Installd) RenameModuleDir(oldPath, newPath string) (err error) {
	defer func() { d.record("rename_module_dir", err) }()
	if oldPath == "" || newPath == "" {
		return fmt.Errorf("%w: empty rename path", types.ErrInstalldParam)
	}
	if err = os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("%w: rename %s to %s: %v", types.ErrRenameDirFailed, oldPath, newPath, err)
	}
	return nil
}

// CreateBundleDataDir builds the per-user data tree for one bundle:
// owner-only base directories under el1 and el2 (the el2 one with its
// fixed sub-tree), group-shared database directories, the apl label on
// each, and the distributed-file directories when the device shares
// files. Directories created before a failing step are left in place;
// the recovery pass at next start reconciles them.
func (d *Installd) CreateBundleDataDir(bundleName string, userID, uid, gid int32, apl string) (err error) {
	defer func() { d.record("create_bundle_data_dir", err) }()
	if bundleName == "" || userID < 0 || uid < 0 || gid < 0 {
		return fmt.Errorf("%w: bad data dir args for %q", types.ErrInstalldParam, bundleName)
	}

	for _, el := range []string{paths.EL1, paths.EL2} {
		base := paths.BundleDataDir(d.cfg.DataRoot, el, userID, bundleName)
		if err = d.makeOwnedDir(base, uid, gid, 0o700, apl); err != nil {
			return err
		}
		if el == paths.EL2 {
			for _, sub := range paths.BaseDataSubDirs {
				if err = d.makeOwnedDir(filepath.Join(base, sub), uid, gid, 0o700, apl); err != nil {
					return err
				}
			}
		}

		db := paths.DatabaseDir(d.cfg.DataRoot, el, userID, bundleName)
		if err = d.makeOwnedDir(db, uid, d.cfg.DatabaseGID, 0o770, apl); err != nil {
			return err
		}
	}

	if d.cfg.DistributedFS {
		account := paths.DistributedAccountDir(d.cfg.DistRoot, userID, bundleName)
		if err = d.makeOwnedDir(account, uid, gid, 0o700, apl); err != nil {
			return err
		}
		nonAccount := paths.DistributedNonAccountDir(d.cfg.DistRoot, userID, bundleName)
		if err = d.makeOwnedDir(nonAccount, uid, d.cfg.DistributedGID, 0o770, apl); err != nil {
			return err
		}
	}
	return nil
}

func (d *Installd) makeOwnedDir(dir string, uid, gid int32, mode os.FileMode, apl string) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", types.ErrCreateDirFailed, dir, err)
	}
	// MkdirAll honors umask; force the intended bits.
	if err := os.Chmod(dir, mode); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", types.ErrCreateDirFailed, dir, err)
	}
	if err := os.Chown(dir, int(uid), int(gid)); err != nil {
		return fmt.Errorf("%w: chown %s: %v", types.ErrCreateDirFailed, dir, err)
	}
	return d.SetDirApl(dir, "", apl)
}

// RemoveBundleDataDir deletes every per-user directory of one bundle.
func (d *Installd) RemoveBundleDataDir(bundleName string, userID int32) (err error) {
	defer func() { d.record("remove_bundle_data_dir", err) }()
	if bundleName == "" || userID < 0 {
		return fmt.Errorf("%w: bad remove args for %q", types.ErrInstalldParam, bundleName)
	}
	for _, el := range []string{paths.EL1, paths.EL2} {
		for _, dir := range []string{
			paths.BundleDataDir(d.cfg.DataRoot, el, userID, bundleName),
			paths.DatabaseDir(d.cfg.DataRoot, el, userID, bundleName),
		} {
			if err = os.RemoveAll(dir); err != nil {
				return fmt.Errorf("%w: remove %s: %v", types.ErrRemoveDirFailed, dir, err)
			}
		}
	}
	if d.cfg.DistributedFS {
		for _, dir := range []string{
			paths.DistributedAccountDir(d.cfg.DistRoot, userID, bundleName),
			paths.DistributedNonAccountDir(d.cfg.DistRoot, userID, bundleName),
		} {
			if err = os.RemoveAll(dir); err != nil {
				return fmt.Errorf("%w: remove %s: %v", types.ErrRemoveDirFailed, dir, err)
			}
		}
	}
	return nil
}

// RemoveModuleDataDir deletes one module's per-user data. Module-level
// cleanup is best-effort: failures are logged, never returned.
func (d *Installd) RemoveModuleDataDir(bundleName, moduleName string, userID int32) error {
	defer d.record("remove_module_data_dir", nil)
	for _, el := range []string{paths.EL1, paths.EL2} {
		dir := paths.ModuleDataDir(d.cfg.DataRoot, el, userID, bundleName, moduleName)
		if err := os.RemoveAll(dir); err != nil {
			d.logger.Warn("module data cleanup failed",
				zap.String("dir", dir), zap.Error(err))
		}
	}
	return nil
}

// RemoveDir recursively deletes an arbitrary directory.
func (d *Installd) RemoveDir(dir string) (err error) {
	defer func() { d.record("remove_dir", err) }()
	if dir == "" {
		return fmt.Errorf("%w: empty dir", types.ErrInstalldParam)
	}
	if err = os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove %s: %v", types.ErrRemoveDirFailed, dir, err)
	}
	return nil
}

// CleanBundleDataDir deletes the contents of dir without removing dir
// itself.
func (d *Installd) CleanBundleDataDir(dir string) (err error) {
	defer func() { d.record("clean_bundle_data_dir", err) }()
	if dir == "" {
		return fmt.Errorf("%w: empty dir", types.ErrInstalldParam)
	}
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return fmt.Errorf("%w: read %s: %v", types.ErrCleanDirFailed, dir, readErr)
	}
	for _, entry := range entries {
		if err = os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: clean %s: %v", types.ErrCleanDirFailed, dir, err)
		}
	}
	return nil
}

// SetDirApl labels a directory with the given privilege level,
// defaulting to normal when apl is empty. Relabeling with the same
// value is a no-op.
func (d *Installd) SetDirApl(dir, bundleName, apl string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty dir", types.ErrInstalldParam)
	}
	if apl == "" {
		apl = AplNormal
	}
	if current, err := getAPL(dir); err == nil && current == apl {
		return nil
	}
	if err := setAPL(dir, apl); err != nil {
		return fmt.Errorf("%w: label %s as %s: %v", types.ErrSetDirAplFailed, dir, apl, err)
	}
	return nil
}

// GetBundleCachePath lists the cache directories of one bundle for one
// user that exist on disk.
func (d *Installd) GetBundleCachePath(bundleName string, userID int32) []string {
	var dirs []string
	cache := paths.CacheDir(d.cfg.DataRoot, userID, bundleName)
	if info, err := os.Stat(cache); err == nil && info.IsDir() {
		dirs = append(dirs, cache)
	}
	return dirs
}
