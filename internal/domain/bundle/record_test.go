package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

func demoModule(pkg string, entry bool) *Module {
	return &Module{
		Package: pkg,
		Name:    pkg,
		Type:    "feature",
		IsEntry: entry,
		Abilities: []Ability{
			{Name: "MainAbility", Visible: true, Skills: []Skill{
				{Actions: []string{"action.system.home"}, Entities: []string{"entity.system.home"}},
			}},
		},
		Forms:     []Form{{Name: "card", IsDefault: true}},
		Shortcuts: []Shortcut{{ID: "s1"}},
	}
}

func TestAddModuleRejectsDuplicate(t *testing.T) {
	r := NewRecord("com.example.demo")
	assert.True(t, r.AddModule(demoModule("entry", true)))
	assert.False(t, r.AddModule(demoModule("entry", true)))
	assert.Equal(t, "entry", r.EntryModuleName)
}

func TestUpdateModuleReplacesDependentSet(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(demoModule("entry", true)))

	replacement := &Module{
		Package: "entry",
		Name:    "entry",
		Type:    "entry",
		IsEntry: true,
		Abilities: []Ability{
			{Name: "SecondAbility", Visible: true},
		},
	}
	require.NoError(t, r.UpdateModule(replacement))

	// Nothing from the first version survives the swap.
	_, _, err := r.FindAbility("entry", "MainAbility")
	assert.ErrorIs(t, err, types.ErrAbilityNotFound)
	_, _, err = r.FindAbility("entry", "SecondAbility")
	assert.NoError(t, err)
	m, ok := r.FindModule("entry")
	require.True(t, ok)
	assert.Empty(t, m.Forms)
	assert.Empty(t, m.Shortcuts)
}

func TestUpdateModuleUnknownPackage(t *testing.T) {
	r := NewRecord("com.example.demo")
	err := r.UpdateModule(demoModule("missing", false))
	assert.ErrorIs(t, err, types.ErrModuleNotFound)
}

func TestRemoveEntryModuleClearsMainEntry(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(demoModule("entry", true)))
	r.MainEntryAbility = "com.example.demo.entry.MainAbility"

	require.NoError(t, r.RemoveModule("entry"))
	assert.Empty(t, r.EntryModuleName)
	assert.Empty(t, r.MainEntryAbility)
}

func TestDependentModuleNamesTolerateCycle(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(&Module{Package: "A", Name: "A", Dependencies: []string{"B"}}))
	require.True(t, r.AddModule(&Module{Package: "B", Name: "B", Dependencies: []string{"A"}}))

	deps := r.GetAllDependentModuleNames("A")
	assert.Equal(t, []string{"B"}, deps)
}

func TestDependentModuleNamesTransitive(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(&Module{Package: "A", Name: "A", Dependencies: []string{"B", "C"}}))
	require.True(t, r.AddModule(&Module{Package: "B", Name: "B", Dependencies: []string{"D"}}))
	require.True(t, r.AddModule(&Module{Package: "C", Name: "C"}))
	require.True(t, r.AddModule(&Module{Package: "D", Name: "D"}))

	deps := r.GetAllDependentModuleNames("A")
	assert.Equal(t, []string{"B", "C", "D"}, deps)
}

func TestIsRemovable(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(demoModule("entry", true)))
	assert.True(t, r.IsRemovable(100))

	// A preinstalled bundle is never removable, flags notwithstanding.
	r.IsPreInstalled = true
	assert.False(t, r.IsRemovable(100))

	r.IsPreInstalled = false
	require.NoError(t, r.SetModuleRemovable("entry", 100, false))
	assert.False(t, r.IsRemovable(100))
	assert.True(t, r.IsRemovable(101))
}

func TestGetUserStateAnyUser(t *testing.T) {
	r := NewRecord("com.example.demo")
	_, ok := r.GetUserState(types.UserIDAny)
	assert.False(t, ok)

	r.AddUserState(&types.UserState{BundleName: r.Name, UserID: 100, Enabled: true, UID: 10010})
	s, ok := r.GetUserState(types.UserIDAny)
	require.True(t, ok)
	assert.EqualValues(t, 10010, s.UID)

	_, ok = r.GetUserState(101)
	assert.False(t, ok)
}

func TestGetBundleInfoFlags(t *testing.T) {
	r := NewRecord("com.example.demo")
	r.VersionCode = 7
	r.ContentHash = "abc123"
	require.True(t, r.AddModule(demoModule("entry", true)))
	m, _ := r.FindModule("entry")
	m.RequestPermissions = []string{"perm.b", "perm.a", "perm.a"}
	r.AddUserState(&types.UserState{BundleName: r.Name, UserID: 100, Enabled: true, UID: 10010, GIDs: []int32{10010}})

	base := r.GetBundleInfo(types.GetBundleDefault, 100)
	assert.Empty(t, base.Abilities)
	assert.Empty(t, base.Permissions)
	assert.Empty(t, base.PackageHash)
	assert.EqualValues(t, 10010, base.UID)
	assert.True(t, base.Enabled)

	full := r.GetBundleInfo(
		types.GetBundleWithAbilities|types.GetBundleWithPermissions|types.GetBundleWithHash, 100)
	assert.Len(t, full.Abilities, 1)
	assert.Equal(t, []string{"perm.a", "perm.b"}, full.Permissions)
	assert.Equal(t, "abc123", full.PackageHash)
}

func TestGetBundleInfoDegradesMissingUser(t *testing.T) {
	r := NewRecord("com.example.demo")
	require.True(t, r.AddModule(demoModule("entry", true)))

	info := r.GetBundleInfo(types.GetBundleDefault, 100)
	assert.Zero(t, info.UID)
	assert.Zero(t, info.InstallTime)
	assert.False(t, info.Enabled)
	assert.Equal(t, "com.example.demo", info.Name)
}

func TestSandboxInfoLifecycle(t *testing.T) {
	r := NewRecord("com.example.demo")
	r.AddSandboxInfo(types.SandboxPersistentInfo{AccessTokenID: 1, AppIndex: 1, UserID: 100})
	r.AddSandboxInfo(types.SandboxPersistentInfo{AccessTokenID: 2, AppIndex: 2, UserID: 100})

	r.RemoveSandboxInfo(100, 1)
	require.Len(t, r.SandboxInfos, 1)
	assert.EqualValues(t, 2, r.SandboxInfos[0].AppIndex)
}
