package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// fakeArchive satisfies Introspector from in-memory entries.
type fakeArchive struct {
	entries map[string][]byte
	dirs    map[string]bool
}

func (f *fakeArchive) HasEntry(name string) bool { _, ok := f.entries[name]; return ok }
func (f *fakeArchive) HasDir(dir string) bool    { return f.dirs[dir] }
func (f *fakeArchive) ReadEntry(name string) ([]byte, error) {
	if data, ok := f.entries[name]; ok {
		return data, nil
	}
	return nil, types.ErrBadProfile
}

func legacyArchive(manifest string) *fakeArchive {
	return &fakeArchive{entries: map[string][]byte{LegacyManifest: []byte(manifest)}, dirs: map[string]bool{}}
}

func currentArchive(manifest string) *fakeArchive {
	return &fakeArchive{entries: map[string][]byte{CurrentManifest: []byte(manifest)}, dirs: map[string]bool{}}
}

func newParser() *Parser {
	return New("phone", []string{"arm64-v8a", "armeabi-v7a", "armeabi"}, logging.NewDefault())
}

const legacyManifest = `{
  "app": {
    "bundleName": "com.example.demo",
    "vendor": "example",
    "version": {"code": 1000000, "name": "1.0.0"},
    "apiVersion": {"compatible": 6, "target": 8, "releaseType": "Release"}
  },
  "deviceConfig": {
    "default": {"keepAlive": false},
    "phone": {"keepAlive": true}
  },
  "module": {
    "package": "com.example.demo.entry",
    "name": ".MyApplication",
    "deviceType": ["phone", "tablet"],
    "distro": {
      "deliveryWithInstall": true,
      "moduleName": "entry",
      "moduleType": "entry"
    },
    "abilities": [{
      "name": "MainAbility",
      "label": "Demo",
      "type": "page",
      "launchType": "standard",
      "visible": true,
      "backgroundModes": ["dataTransfer", "location"],
      "skills": [{
        "actions": ["action.system.home"],
        "entities": ["entity.system.home", "flag.home.intent.from.system"]
      }]
    }],
    "reqPermissions": [{"name": "ohos.permission.INTERNET"}]
  }
}`

const currentManifest = `{
  "app": {
    "bundleName": "com.example.stage",
    "versionCode": 2000000,
    "versionName": "2.0.0",
    "minAPIVersion": 9,
    "targetAPIVersion": 9,
    "keepAlive": true,
    "phone": {"minAPIVersion": 10, "keepAlive": false}
  },
  "module": {
    "name": "entry",
    "type": "entry",
    "mainElement": "EntryAbility",
    "deviceTypes": ["phone"],
    "deliveryWithInstall": true,
    "pages": "$profile:main_pages",
    "abilities": [{
      "name": "EntryAbility",
      "srcEntrance": "./ets/entryability/EntryAbility.ts",
      "visible": true,
      "skills": [{
        "actions": ["action.system.home"],
        "entities": ["entity.system.home"]
      }]
    }],
    "extensionAbilities": [{
      "name": "BackupExt",
      "type": "backup",
      "visible": false
    }],
    "requestPermissions": [{"name": "ohos.permission.INTERNET"}]
  }
}`

func TestParseLegacy(t *testing.T) {
	p := newParser()
	r, err := p.Parse(legacyArchive(legacyManifest), Options{PreInstalled: true, SystemApp: true})
	require.NoError(t, err)

	assert.Equal(t, "com.example.demo", r.Name)
	assert.EqualValues(t, 1000000, r.VersionCode)
	assert.Equal(t, "1.0.0", r.VersionName)
	// Unset minCompatibleVersionCode defaults to the version code.
	assert.EqualValues(t, 1000000, r.MinCompatibleVersionCode)
	assert.EqualValues(t, 6, r.CompatibleAPIVersion)

	m, ok := r.FindModule("com.example.demo.entry")
	require.True(t, ok)
	assert.True(t, m.IsEntry)
	assert.True(t, m.Legacy)
	assert.Equal(t, "entry", m.Name)
	assert.Equal(t, []string{"ohos.permission.INTERNET"}, m.RequestPermissions)
	require.Len(t, m.Abilities, 1)
	assert.EqualValues(t, (1<<0)|(1<<3), m.Abilities[0].BackgroundModes)

	// The phone block overrides the default block.
	assert.True(t, r.KeepAlive)

	assert.Equal(t, "com.example.demo.com.example.demo.entry.MainAbility", r.MainEntryAbility)
	assert.True(t, r.IsLauncherApp)
	assert.False(t, r.IsRemovable(100))
}

func TestParseLegacyDeterministic(t *testing.T) {
	p := newParser()
	a, err := p.Parse(legacyArchive(legacyManifest), Options{})
	require.NoError(t, err)
	b, err := p.Parse(legacyArchive(legacyManifest), Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseCurrent(t *testing.T) {
	p := newParser()
	r, err := p.Parse(currentArchive(currentManifest), Options{PreInstalled: true, SystemApp: true})
	require.NoError(t, err)

	assert.Equal(t, "com.example.stage", r.Name)
	assert.EqualValues(t, 2000000, r.VersionCode)
	// The phone override block rewrites minAPIVersion and keepAlive.
	assert.EqualValues(t, 10, r.CompatibleAPIVersion)
	assert.False(t, r.KeepAlive)

	m, ok := r.FindModule("entry")
	require.True(t, ok)
	assert.False(t, m.Legacy)
	assert.Equal(t, "EntryAbility", m.MainElement)
	require.Len(t, m.Extensions, 1)
	assert.Equal(t, "backup", m.Extensions[0].Type)

	// Home action + entity but no system-launcher flag entity.
	assert.Equal(t, "com.example.stage.entry.EntryAbility", r.MainEntryAbility)
	assert.False(t, r.IsLauncherApp)
}

func TestParseCurrentDeterministic(t *testing.T) {
	p := newParser()
	a, err := p.Parse(currentArchive(currentManifest), Options{})
	require.NoError(t, err)
	b, err := p.Parse(currentArchive(currentManifest), Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParsePrivilegeGating(t *testing.T) {
	p := newParser()
	r, err := p.Parse(currentArchive(currentManifest), Options{})
	require.NoError(t, err)

	// A third-party package cannot claim keep-alive.
	assert.False(t, r.KeepAlive)
	assert.False(t, r.IsSystemApp)
	assert.True(t, r.IsRemovable(100))
}

func TestParseNoManifest(t *testing.T) {
	p := newParser()
	_, err := p.Parse(&fakeArchive{entries: map[string][]byte{}, dirs: map[string]bool{}}, Options{})
	assert.ErrorIs(t, err, types.ErrBadProfile)
}

func TestParseMalformedJSON(t *testing.T) {
	p := newParser()
	_, err := p.Parse(legacyArchive("{nope"), Options{})
	assert.ErrorIs(t, err, types.ErrBadProfile)
}

func TestParseCurrentMissingRequiredFields(t *testing.T) {
	p := newParser()
	_, err := p.Parse(currentArchive(`{
	  "app": {"bundleName": "com.example.stage", "versionCode": 1, "versionName": "1.0", "minAPIVersion": 9, "targetAPIVersion": 9},
	  "module": {"name": "entry", "type": "entry", "deviceTypes": ["phone"]}
	}`), Options{})
	assert.ErrorIs(t, err, types.ErrProfilePropCheck)
}

func TestValidateBundleName(t *testing.T) {
	assert.Error(t, ValidateBundleName("a"))
	assert.NoError(t, ValidateBundleName("Abcdefg"))
	assert.Error(t, ValidateBundleName("7abcdefg"))
	assert.Error(t, ValidateBundleName("ab/cdefg"))
	assert.NoError(t, ValidateBundleName("com.example.demo_1"))
}

func TestParseLegacyBadBundleName(t *testing.T) {
	p := newParser()
	_, err := p.Parse(legacyArchive(`{
	  "app": {"bundleName": "7bad.name", "version": {"code": 1, "name": "1.0"}},
	  "module": {"package": "p", "deviceType": ["phone"], "distro": {"deliveryWithInstall": true, "moduleName": "m", "moduleType": "entry"}}
	}`), Options{})
	assert.ErrorIs(t, err, types.ErrProfilePropCheck)
}

func TestParseLegacyLiteDeviceExemption(t *testing.T) {
	p := newParser()
	manifest := `{
	  "app": {"bundleName": "com.example.lite", "version": {"code": 1, "name": "1.0"}},
	  "module": {
	    "deviceType": ["liteWearable"],
	    "distro": {"deliveryWithInstall": true, "moduleType": "entry"}
	  }
	}`

	// Missing package and moduleName pass on lite-only device types and
	// default to the bundle name.
	r, err := p.Parse(legacyArchive(manifest), Options{})
	require.NoError(t, err)
	m, ok := r.FindModule("com.example.lite")
	require.True(t, ok)
	assert.Equal(t, "com.example.lite", m.Name)

	// The same manifest on a regular device type is rejected.
	_, err = p.Parse(legacyArchive(`{
	  "app": {"bundleName": "com.example.lite", "version": {"code": 1, "name": "1.0"}},
	  "module": {
	    "deviceType": ["phone"],
	    "distro": {"deliveryWithInstall": true, "moduleType": "entry"}
	  }
	}`), Options{})
	assert.ErrorIs(t, err, types.ErrProfilePropCheck)
}

func TestResolveABI(t *testing.T) {
	p := newParser()

	arch := legacyArchive(legacyManifest)
	arch.dirs["libs/armeabi-v7a"] = true
	arch.dirs["libs/armeabi"] = true

	r, err := p.Parse(arch, Options{})
	require.NoError(t, err)
	// First hit in preference order wins.
	assert.Equal(t, "armeabi-v7a", r.CpuAbi)
	assert.Equal(t, "libs/armeabi-v7a", r.NativeLibraryPath)

	// No native libraries at all falls back to the placeholder.
	r, err = p.Parse(legacyArchive(legacyManifest), Options{})
	require.NoError(t, err)
	assert.Equal(t, AbiDefault, r.CpuAbi)
	assert.Empty(t, r.NativeLibraryPath)
}

func TestComponentKeyForm(t *testing.T) {
	key := bundle.ComponentKey{Bundle: "b.example.app", Module: "entry", Component: "Main"}
	assert.Equal(t, "b.example.app.entry.Main", key.String())
}
