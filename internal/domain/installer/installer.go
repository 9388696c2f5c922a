package installer

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/extractor"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/installd"
	"github.com/GriffinCanCode/BundleOS/backend/internal/profile"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/utils"
)

// Params carries the caller-chosen facts of one install request.
type Params struct {
	UserID       int32
	PreInstalled bool
	SystemApp    bool
	APL          string
}

// Installer orchestrates package install, upgrade, and uninstall on top
// of the parser, the data manager, and the privileged daemon. Installs
// are serialized; queries stay concurrent through the data manager.
type Installer struct {
	mu sync.Mutex

	data     *bundle.DataMgr
	daemon   *installd.Installd
	parser   *profile.Parser
	hasher   *utils.Hasher
	codeRoot string

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates an installer.
func New(data *bundle.DataMgr, daemon *installd.Installd, parser *profile.Parser, codeRoot string, logger *logging.Logger) *Installer {
	return &Installer{
		data:     data,
		daemon:   daemon,
		parser:   parser,
		hasher:   utils.DefaultHasher(),
		codeRoot: codeRoot,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking.
func (i *Installer) WithMetrics(metrics *monitoring.Metrics) *Installer {
	i.metrics = metrics
	return i
}

// Install ingests one package archive for one user: parse, extract,
// create the per-user data tree, and fold the module into the bundle
// aggregate. It returns the bundle name on success.
func (i *Installer) Install(packagePath string, params Params) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	taskID := uuid.New().String()
	if params.UserID < 0 {
		return "", fmt.Errorf("%w: user id %d", types.ErrInstalldParam, params.UserID)
	}

	arch, err := extractor.Open(packagePath)
	if err != nil {
		i.recordInstall("new", "error", start)
		return "", err
	}
	defer arch.Close()

	parsed, err := i.parser.Parse(arch, profile.Options{
		PreInstalled: params.PreInstalled,
		SystemApp:    params.SystemApp,
	})
	if err != nil {
		i.recordInstall("new", "error", start)
		return "", err
	}

	hash, err := i.hasher.HashFile(packagePath)
	if err != nil {
		i.recordInstall("new", "error", start)
		return "", fmt.Errorf("hash %s: %w", packagePath, err)
	}
	parsed.ContentHash = hash

	existing, installed := i.data.Get(parsed.Name)
	kind := "new"
	if installed {
		kind = "update"
	}
	if params.PreInstalled {
		kind = "preinstall"
	}

	i.logger.Info("install requested",
		zap.String("task", taskID),
		zap.String("bundle", parsed.Name),
		zap.String("kind", kind),
		zap.Int32("user", params.UserID))

	var installErr error
	if installed {
		installErr = i.installOnExisting(existing, parsed, packagePath, params)
	} else {
		installErr = i.installFresh(parsed, packagePath, params)
	}
	if installErr != nil {
		i.recordInstall(kind, "error", start)
		return "", installErr
	}
	i.recordInstall(kind, "success", start)
	return parsed.Name, nil
}

func (i *Installer) recordInstall(kind, status string, start time.Time) {
	if i.metrics != nil {
		i.metrics.RecordInstall(kind, status, time.Since(start))
	}
}

// installFresh installs a bundle seen for the first time.
func (i *Installer) installFresh(r *bundle.Record, packagePath string, params Params) error {
	m := soleModule(r)
	r.MarkInstall(m.Package, types.InstallStart)

	codeDir := paths.BundleCodeDir(i.codeRoot, r.Name)
	if err := i.daemon.CreateBundleDir(codeDir); err != nil {
		return err
	}
	if err := i.extractModule(r, m, packagePath); err != nil {
		i.daemon.RemoveDir(codeDir)
		return err
	}
	r.CodePath = codeDir

	if err := i.attachUser(r, params); err != nil {
		i.daemon.RemoveDir(codeDir)
		return err
	}

	r.MarkInstall(m.Package, types.InstallFinish)
	return i.data.Put(r)
}

// installOnExisting upgrades a module in place or adds a new module to
// an installed bundle. The record is live in the data manager, so
// every mutation goes through MutateRecord; queries running in
// parallel only ever see it before or after a step, never mid-write.
func (i *Installer) installOnExisting(existing, parsed *bundle.Record, packagePath string, params Params) error {
	if parsed.VersionCode < existing.VersionCode {
		return fmt.Errorf("%w: %d < %d", types.ErrVersionDowngrade, parsed.VersionCode, existing.VersionCode)
	}

	m := soleModule(parsed)
	_, moduleExists := existing.FindModule(m.Package)
	mark := types.UpdatingNewStart
	if moduleExists {
		mark = types.UpdatingExistedStart
	}
	if err := i.data.MutateRecord(existing.Name, func(r *bundle.Record) error {
		r.MarkInstall(m.Package, mark)
		return nil
	}); err != nil {
		return err
	}

	if err := i.extractModule(existing, m, packagePath); err != nil {
		return err
	}

	// Daemon work for a new user happens before the record is touched.
	state, _ := existing.GetUserState(params.UserID)
	if state == nil {
		uid := i.data.AllocateUID()
		if err := i.daemon.CreateBundleDataDir(existing.Name, params.UserID, uid, uid, params.APL); err != nil {
			return err
		}
		now := time.Now().Unix()
		state = &types.UserState{
			BundleName:  existing.Name,
			UserID:      params.UserID,
			Enabled:     true,
			UID:         uid,
			GIDs:        []int32{uid},
			InstallTime: now,
			UpdateTime:  now,
		}
	} else {
		state.UpdateTime = time.Now().Unix()
	}

	if err := i.data.MutateRecord(existing.Name, func(r *bundle.Record) error {
		if moduleExists {
			if err := r.UpdateModule(m); err != nil {
				return err
			}
		} else if !r.AddModule(m) {
			return fmt.Errorf("%w: %s", types.ErrModuleExists, m.Package)
		}

		if parsed.VersionCode > r.VersionCode {
			adoptVersion(r, parsed)
		}
		r.ContentHash = parsed.ContentHash
		if parsed.MainEntryAbility != "" {
			r.MainEntryAbility = parsed.MainEntryAbility
			r.IsLauncherApp = parsed.IsLauncherApp
		}
		r.AddUserState(state)
		r.MarkInstall(m.Package, types.UpdatingFinish)
		return nil
	}); err != nil {
		return err
	}
	return i.data.SaveUserState(state)
}

// adoptVersion moves the record-level fields forward to the newer
// package's values.
func adoptVersion(existing, parsed *bundle.Record) {
	existing.VersionCode = parsed.VersionCode
	existing.VersionName = parsed.VersionName
	existing.MinCompatibleVersionCode = parsed.MinCompatibleVersionCode
	existing.CompatibleAPIVersion = parsed.CompatibleAPIVersion
	existing.TargetAPIVersion = parsed.TargetAPIVersion
	existing.ReleaseType = parsed.ReleaseType
	existing.KeepAlive = parsed.KeepAlive
	existing.Singleton = parsed.Singleton
	existing.UserDataClearable = parsed.UserDataClearable
	existing.Accessible = parsed.Accessible
}

// extractModule unpacks the package into a temp module directory and
// renames it into place, replacing any previous version atomically.
func (i *Installer) extractModule(r *bundle.Record, m *bundle.Module, packagePath string) error {
	finalDir := paths.ModuleDir(i.codeRoot, r.Name, m.Package)
	tmpDir := finalDir + paths.TmpSuffix

	soPath := ""
	if r.NativeLibraryPath != "" {
		soPath = filepath.Join(tmpDir, r.NativeLibraryPath)
	}
	abi := ""
	if r.CpuAbi != profile.AbiDefault {
		abi = r.CpuAbi
	}
	if err := i.daemon.ExtractModuleFiles(packagePath, tmpDir, soPath, abi); err != nil {
		return err
	}
	if err := i.daemon.RemoveDir(finalDir); err != nil {
		i.daemon.RemoveDir(tmpDir)
		return err
	}
	return i.daemon.RenameModuleDir(tmpDir, finalDir)
}

// attachUser creates the per-user data tree and state for one user.
func (i *Installer) attachUser(r *bundle.Record, params Params) error {
	uid := i.data.AllocateUID()
	if err := i.daemon.CreateBundleDataDir(r.Name, params.UserID, uid, uid, params.APL); err != nil {
		return err
	}
	now := time.Now().Unix()
	r.AddUserState(&types.UserState{
		BundleName:  r.Name,
		UserID:      params.UserID,
		Enabled:     true,
		UID:         uid,
		GIDs:        []int32{uid},
		InstallTime: now,
		UpdateTime:  now,
	})
	return nil
}

// Uninstall removes a bundle for one user, and entirely once no user
// keeps it installed.
func (i *Installer) Uninstall(bundleName string, userID int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	err := i.uninstallLocked(bundleName, userID)
	if i.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		i.metrics.RecordUninstall(status)
	}
	return err
}

func (i *Installer) uninstallLocked(bundleName string, userID int32) error {
	r, ok := i.data.Get(bundleName)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if _, installed := r.GetUserState(userID); !installed {
		return fmt.Errorf("%w: %s for user %d", types.ErrUserNotInstalled, bundleName, userID)
	}
	if !r.IsRemovable(userID) {
		return fmt.Errorf("%w: %s", types.ErrNotRemovable, bundleName)
	}

	if err := i.data.MutateRecord(bundleName, func(r *bundle.Record) error {
		r.MarkInstall("", types.UninstallBundleStart)
		return nil
	}); err != nil {
		return err
	}

	if err := i.daemon.RemoveBundleDataDir(bundleName, userID); err != nil {
		return err
	}
	remaining, err := i.data.RemoveUserState(bundleName, userID)
	if err != nil {
		return err
	}
	if remaining {
		return i.data.MutateRecord(bundleName, func(r *bundle.Record) error {
			r.MarkInstall("", types.InstallFinish)
			return nil
		})
	}

	if err := i.daemon.RemoveDir(paths.BundleCodeDir(i.codeRoot, bundleName)); err != nil {
		return err
	}
	return i.data.Remove(bundleName)
}

// UninstallModule removes one module from a bundle for one user. The
// last module leaving triggers a whole-bundle uninstall.
func (i *Installer) UninstallModule(bundleName, modulePackage string, userID int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	r, ok := i.data.Get(bundleName)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	m, ok := r.FindModule(modulePackage)
	if !ok {
		return fmt.Errorf("%w: %s in bundle %s", types.ErrModuleNotFound, modulePackage, bundleName)
	}
	if !r.IsRemovable(userID) {
		return fmt.Errorf("%w: %s", types.ErrNotRemovable, bundleName)
	}

	if len(r.Modules) == 1 {
		return i.uninstallLocked(bundleName, userID)
	}

	if err := i.data.MutateRecord(bundleName, func(r *bundle.Record) error {
		r.MarkInstall(modulePackage, types.UninstallPackageStart)
		return nil
	}); err != nil {
		return err
	}

	i.daemon.RemoveModuleDataDir(bundleName, m.Name, userID)
	if err := i.daemon.RemoveDir(paths.ModuleDir(i.codeRoot, bundleName, modulePackage)); err != nil {
		return err
	}

	return i.data.MutateRecord(bundleName, func(r *bundle.Record) error {
		if err := r.RemoveModule(modulePackage); err != nil {
			return err
		}
		r.MarkInstall(modulePackage, types.InstallFinish)
		return nil
	})
}

// CleanCache clears every cache directory of a bundle for one user.
func (i *Installer) CleanCache(bundleName string, userID int32) error {
	r, ok := i.data.Get(bundleName)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrBundleNotFound, bundleName)
	}
	if !r.UserDataClearable {
		return fmt.Errorf("%w: %s cache is protected", types.ErrNotRemovable, bundleName)
	}
	for _, dir := range i.daemon.GetBundleCachePath(bundleName, userID) {
		if err := i.daemon.CleanBundleDataDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// Recover reconciles installs interrupted by a crash: a fresh install
// that never finished is rolled forward to removal; interrupted
// updates and uninstalls keep their on-disk state and just clear the
// mark, leaving retry to the caller.
func (i *Installer) Recover() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, mark := range i.data.PendingInstalls() {
		i.logger.Warn("recovering interrupted operation",
			zap.String("bundle", mark.BundleName),
			zap.String("status", string(mark.Status)))

		switch mark.Status {
		case types.InstallStart:
			i.daemon.RemoveDir(paths.BundleCodeDir(i.codeRoot, mark.BundleName))
			if r, ok := i.data.Get(mark.BundleName); ok {
				for userID := range r.Users {
					i.daemon.RemoveBundleDataDir(mark.BundleName, userID)
				}
				i.data.Remove(mark.BundleName)
			}
		case types.UninstallBundleStart:
			if r, ok := i.data.Get(mark.BundleName); ok {
				for userID := range r.Users {
					i.daemon.RemoveBundleDataDir(mark.BundleName, userID)
				}
				i.daemon.RemoveDir(paths.BundleCodeDir(i.codeRoot, mark.BundleName))
				i.data.Remove(mark.BundleName)
			}
		default:
			i.data.MutateRecord(mark.BundleName, func(r *bundle.Record) error {
				r.MarkInstall(mark.Package, types.InstallFinish)
				return nil
			})
		}
	}
}

// soleModule returns the single module a freshly parsed record carries.
func soleModule(r *bundle.Record) *bundle.Module {
	for _, m := range r.Modules {
		return m
	}
	return nil
}
