package installer

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/state"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/installd"
	"github.com/GriffinCanCode/BundleOS/backend/internal/profile"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

type env struct {
	installer *Installer
	data      *bundle.DataMgr
	daemon    *installd.Installd
	codeRoot  string
	dataRoot  string
	workDir   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	codeRoot := filepath.Join(root, "code")
	dataRoot := filepath.Join(root, "data")
	logger := logging.NewDefault()

	records, err := state.NewRecordStore(filepath.Join(root, "bms", paths.BundleRecordFile))
	require.NoError(t, err)
	states, err := state.NewUserStateStore(filepath.Join(root, "bms", paths.UserStateFile))
	require.NoError(t, err)

	data := bundle.NewDataMgr(records, states, 10000, logger)
	require.NoError(t, data.LoadFromStores())

	daemon := installd.New(installd.Config{
		CodeRoot:       codeRoot,
		DataRoot:       dataRoot,
		DistRoot:       filepath.Join(root, "hmdfs"),
		DatabaseGID:    int32(os.Getgid()),
		DistributedGID: int32(os.Getgid()),
	}, logger)
	parser := profile.New("phone", []string{"arm64-v8a", "armeabi"}, logger)

	return &env{
		installer: New(data, daemon, parser, codeRoot, logger),
		data:      data,
		daemon:    daemon,
		codeRoot:  codeRoot,
		dataRoot:  dataRoot,
		workDir:   root,
	}
}

func stageManifest(bundleName, moduleName, abilityName string, versionCode int32) string {
	return fmt.Sprintf(`{
	  "app": {
	    "bundleName": %q,
	    "versionCode": %d,
	    "versionName": "%d.0.0",
	    "minAPIVersion": 9,
	    "targetAPIVersion": 9
	  },
	  "module": {
	    "name": %q,
	    "type": "entry",
	    "mainElement": %q,
	    "deviceTypes": ["phone"],
	    "deliveryWithInstall": true,
	    "pages": "$profile:main_pages",
	    "abilities": [{
	      "name": %q,
	      "visible": true,
	      "skills": [{
	        "actions": ["action.system.home"],
	        "entities": ["entity.system.home"]
	      }]
	    }]
	  }
	}`, bundleName, versionCode, versionCode, moduleName, abilityName, abilityName)
}

var hapSeq int

func writeHap(t *testing.T, dir, manifest string) string {
	t.Helper()
	hapSeq++
	path := filepath.Join(dir, fmt.Sprintf("pkg-%d.hap", hapSeq))
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("module.json")
	require.NoError(t, err)
	_, err = entry.Write([]byte(manifest))
	require.NoError(t, err)
	code, err := w.Create("ets/modules.abc")
	require.NoError(t, err)
	_, err = code.Write([]byte("bytecode"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestInstallFresh(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))

	name, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)
	assert.Equal(t, "com.example.demo", name)

	r, ok := e.data.Get("com.example.demo")
	require.True(t, ok)
	assert.Equal(t, types.InstallFinish, r.InstallMark.Status)
	assert.NotEmpty(t, r.ContentHash)

	s, ok := r.GetUserState(100)
	require.True(t, ok)
	assert.True(t, s.Enabled)
	assert.EqualValues(t, 10000, s.UID)
	assert.NotZero(t, s.InstallTime)

	_, err = os.Stat(filepath.Join(paths.ModuleDir(e.codeRoot, "com.example.demo", "entry"), "ets", "modules.abc"))
	assert.NoError(t, err)
	_, err = os.Stat(paths.BundleDataDir(e.dataRoot, paths.EL2, 100, "com.example.demo"))
	assert.NoError(t, err)
}

func TestInstallRejectsDowngrade(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	v2 := writeHap(t, dir, stageManifest("com.example.demo", "entry", "EntryAbility", 2))
	_, err := e.installer.Install(v2, Params{UserID: 100})
	require.NoError(t, err)

	v1 := writeHap(t, dir, stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err = e.installer.Install(v1, Params{UserID: 100})
	assert.ErrorIs(t, err, types.ErrVersionDowngrade)
}

func TestInstallUpgradeReplacesModule(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	v1 := writeHap(t, dir, stageManifest("com.example.demo", "entry", "OldAbility", 1))
	_, err := e.installer.Install(v1, Params{UserID: 100})
	require.NoError(t, err)

	v2 := writeHap(t, dir, stageManifest("com.example.demo", "entry", "NewAbility", 2))
	_, err = e.installer.Install(v2, Params{UserID: 100})
	require.NoError(t, err)

	r, ok := e.data.Get("com.example.demo")
	require.True(t, ok)
	assert.EqualValues(t, 2, r.VersionCode)
	assert.Equal(t, types.UpdatingFinish, r.InstallMark.Status)

	_, _, findErr := r.FindAbility("entry", "OldAbility")
	assert.ErrorIs(t, findErr, types.ErrAbilityNotFound)
	_, _, findErr = r.FindAbility("entry", "NewAbility")
	assert.NoError(t, findErr)
}

func TestInstallSecondModule(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	entry := writeHap(t, dir, stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(entry, Params{UserID: 100})
	require.NoError(t, err)

	feature := writeHap(t, dir, stageManifest("com.example.demo", "featureA", "FeatureAbility", 1))
	_, err = e.installer.Install(feature, Params{UserID: 100})
	require.NoError(t, err)

	r, _ := e.data.Get("com.example.demo")
	assert.Len(t, r.Modules, 2)
}

func TestInstallAttachesSecondUser(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)
	_, err = e.installer.Install(hap, Params{UserID: 101})
	require.NoError(t, err)

	r, _ := e.data.Get("com.example.demo")
	_, ok := r.GetUserState(101)
	assert.True(t, ok)
	_, err = os.Stat(paths.BundleDataDir(e.dataRoot, paths.EL2, 101, "com.example.demo"))
	assert.NoError(t, err)
}

func TestUninstallRemovesEverything(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)

	require.NoError(t, e.installer.Uninstall("com.example.demo", 100))

	_, ok := e.data.Get("com.example.demo")
	assert.False(t, ok)
	_, statErr := os.Stat(paths.BundleCodeDir(e.codeRoot, "com.example.demo"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(paths.BundleDataDir(e.dataRoot, paths.EL2, 100, "com.example.demo"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUninstallKeepsBundleForOtherUsers(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)
	_, err = e.installer.Install(hap, Params{UserID: 101})
	require.NoError(t, err)

	require.NoError(t, e.installer.Uninstall("com.example.demo", 100))

	r, ok := e.data.Get("com.example.demo")
	require.True(t, ok)
	_, ok = r.GetUserState(101)
	assert.True(t, ok)
	_, statErr := os.Stat(paths.BundleCodeDir(e.codeRoot, "com.example.demo"))
	assert.NoError(t, statErr)
}

func TestUninstallRefusedForPreinstalled(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.sys", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100, PreInstalled: true, SystemApp: true})
	require.NoError(t, err)

	err = e.installer.Uninstall("com.example.sys", 100)
	assert.ErrorIs(t, err, types.ErrNotRemovable)
}

func TestUninstallUnknownBundle(t *testing.T) {
	e := newEnv(t)
	err := e.installer.Uninstall("com.example.ghost", 100)
	assert.ErrorIs(t, err, types.ErrBundleNotFound)
}

func TestUninstallModule(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	entry := writeHap(t, dir, stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	feature := writeHap(t, dir, stageManifest("com.example.demo", "featureA", "FeatureAbility", 1))
	_, err := e.installer.Install(entry, Params{UserID: 100})
	require.NoError(t, err)
	_, err = e.installer.Install(feature, Params{UserID: 100})
	require.NoError(t, err)

	require.NoError(t, e.installer.UninstallModule("com.example.demo", "featureA", 100))
	r, _ := e.data.Get("com.example.demo")
	assert.Len(t, r.Modules, 1)
	_, statErr := os.Stat(paths.ModuleDir(e.codeRoot, "com.example.demo", "featureA"))
	assert.True(t, os.IsNotExist(statErr))

	// Removing the last module uninstalls the bundle.
	require.NoError(t, e.installer.UninstallModule("com.example.demo", "entry", 100))
	_, ok := e.data.Get("com.example.demo")
	assert.False(t, ok)
}

func TestCleanCache(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)

	cache := paths.CacheDir(e.dataRoot, 100, "com.example.demo")
	require.NoError(t, os.WriteFile(filepath.Join(cache, "tile.bin"), []byte("x"), 0o600))

	require.NoError(t, e.installer.CleanCache("com.example.demo", 100))
	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecoverRollsBackInterruptedFreshInstall(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)

	// Simulate a crash right after the start mark was persisted.
	r, _ := e.data.Get("com.example.demo")
	r.MarkInstall("entry", types.InstallStart)
	require.NoError(t, e.data.SaveRecord(r))

	e.installer.Recover()

	_, ok := e.data.Get("com.example.demo")
	assert.False(t, ok)
	_, statErr := os.Stat(paths.BundleCodeDir(e.codeRoot, "com.example.demo"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecoverClearsInterruptedUpdate(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.demo", "entry", "EntryAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)

	r, _ := e.data.Get("com.example.demo")
	r.MarkInstall("entry", types.UpdatingExistedStart)
	require.NoError(t, e.data.SaveRecord(r))

	e.installer.Recover()

	r, ok := e.data.Get("com.example.demo")
	require.True(t, ok)
	assert.Equal(t, types.InstallFinish, r.InstallMark.Status)
}

func TestSeeder(t *testing.T) {
	e := newEnv(t)
	hap := writeHap(t, t.TempDir(), stageManifest("com.example.launcher", "entry", "EntryAbility", 1))

	listPath := filepath.Join(t.TempDir(), "preinstall.yaml")
	list := fmt.Sprintf("preinstall:\n  - path: %s\n    apl: system_core\n", hap)
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0o644))

	seeded, err := NewSeeder(e.installer, listPath).Seed()
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	r, ok := e.data.Get("com.example.launcher")
	require.True(t, ok)
	assert.True(t, r.IsPreInstalled)
	assert.True(t, r.IsSystemApp)
	assert.False(t, r.IsRemovable(types.DefaultUserID))
}

func TestSeederMissingList(t *testing.T) {
	e := newEnv(t)
	seeded, err := NewSeeder(e.installer, filepath.Join(t.TempDir(), "absent.yaml")).Seed()
	require.NoError(t, err)
	assert.Zero(t, seeded)
}

func TestConcurrentQueriesDuringUpdate(t *testing.T) {
	e := newEnv(t)
	dir := t.TempDir()
	hap := writeHap(t, dir, stageManifest("com.example.race", "entry", "MainAbility", 1))
	_, err := e.installer.Install(hap, Params{UserID: 100})
	require.NoError(t, err)

	// Readers iterate the live module and ability maps under the data
	// manager's read lock while updates swap modules in place.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				e.data.QueryAbilities(types.Want{Action: "action.system.home"}, 100)
				e.data.GetAllBundleInfos(types.GetBundleWithAbilities, 100)
			}
		}()
	}

	for v := int32(2); v <= 6; v++ {
		hap := writeHap(t, dir, stageManifest("com.example.race", "entry", "MainAbility", v))
		_, err := e.installer.Install(hap, Params{UserID: 100})
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	info, err := e.data.GetBundleInfo("com.example.race", types.GetBundleDefault, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 6, info.VersionCode)
}
