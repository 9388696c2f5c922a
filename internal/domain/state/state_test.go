package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

func TestRecordStoreCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bms", "bundle_records.json")
	store, err := NewRecordStore(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle_records.json")
	store, err := NewRecordStore(path)
	require.NoError(t, err)

	r := bundle.NewRecord("com.example.demo")
	r.VersionCode = 1000000
	r.VersionName = "1.0.0"
	r.MinCompatibleVersionCode = 1000000
	r.CompatibleAPIVersion = 8
	r.TargetAPIVersion = 9
	r.IsSystemApp = true
	r.CpuAbi = "arm64-v8a"
	r.NativeLibraryPath = "libs/arm64"
	r.EntryModuleName = "entry"
	require.True(t, r.AddModule(&bundle.Module{
		Package:             "entry",
		Name:                "entry",
		Type:                "entry",
		IsEntry:             true,
		DeliveryWithInstall: true,
		Dependencies:        []string{"shared"},
		RequestPermissions:  []string{"perm.a"},
		Abilities: []bundle.Ability{{
			Name:    "MainAbility",
			Visible: true,
			Skills: []bundle.Skill{{
				Actions:  []string{"action.system.home"},
				Entities: []string{"entity.system.home"},
				URIs:     []bundle.SkillURI{{Scheme: "https", Host: "example.com", Type: "text/html"}},
			}},
		}},
	}))
	require.NoError(t, store.Save(r))

	// Reload through a fresh store to prove the bytes round-trip.
	fresh, err := NewRecordStore(path)
	require.NoError(t, err)
	records, err := fresh.LoadAll()
	require.NoError(t, err)
	require.Contains(t, records, "com.example.demo")

	got := records["com.example.demo"].GetBundleInfo(
		types.GetBundleWithAbilities|types.GetBundleWithPermissions, types.UserIDAny)
	want := r.GetBundleInfo(
		types.GetBundleWithAbilities|types.GetBundleWithPermissions, types.UserIDAny)
	assert.Equal(t, want, got)
}

func TestRecordStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle_records.json")
	store, err := NewRecordStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(bundle.NewRecord("com.example.demo")))
	require.NoError(t, store.Delete("com.example.demo"))

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUserStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle_user_states.json")
	store, err := NewUserStateStore(path)
	require.NoError(t, err)

	s := &types.UserState{
		BundleName:        "com.example.demo",
		UserID:            100,
		Enabled:           true,
		DisabledAbilities: []string{"HiddenAbility"},
		AccessTokenID:     537,
		UID:               10010,
		GIDs:              []int32{10010, 3012},
		InstallTime:       1700000000,
		UpdateTime:        1700000100,
	}
	require.NoError(t, store.Save(s))

	states, err := store.LoadAll()
	require.NoError(t, err)
	require.Contains(t, states, "com.example.demo_100")
	assert.Equal(t, s, states["com.example.demo_100"])

	require.NoError(t, store.Delete("com.example.demo", 100))
	states, err = store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestUserStateStoreKeysPerUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle_user_states.json")
	store, err := NewUserStateStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(&types.UserState{BundleName: "com.example.demo", UserID: 100}))
	require.NoError(t, store.Save(&types.UserState{BundleName: "com.example.demo", UserID: 101}))

	states, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, states, 2)

	require.NoError(t, store.Delete("com.example.demo", 100))
	states, err = store.LoadAll()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Contains(t, states, "com.example.demo_101")
}

func TestLoadAllRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle_records.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewRecordStore(path)
	require.NoError(t, err)
	_, err = store.LoadAll()
	assert.ErrorIs(t, err, types.ErrStoreIO)
}
