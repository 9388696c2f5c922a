package bundle

import (
	"sort"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// GetBundleInfo projects the aggregate into a caller-facing view.
// Expensive optional fields are filled only when selected by flags.
// A concrete userID without a matching UserState degrades the per-user
// fields to absent instead of failing the call.
func (r *Record) GetBundleInfo(flags types.GetFlag, userID int32) types.BundleInfo {
	info := types.BundleInfo{
		Name:                     r.Name,
		VersionCode:              uint32(r.VersionCode),
		VersionName:              r.VersionName,
		MinCompatibleVersionCode: r.MinCompatibleVersionCode,
		CompatibleVersion:        r.CompatibleAPIVersion,
		TargetVersion:            r.TargetAPIVersion,
		ReleaseType:              r.ReleaseType,
		Vendor:                   r.Vendor,
		MainEntry:                r.MainEntryAbility,
		EntryModuleName:          r.EntryModuleName,
		KeepAlive:                r.KeepAlive,
		Singleton:                r.Singleton,
		PreInstalled:             r.IsPreInstalled,
		SystemApp:                r.IsSystemApp,
		Removable:                r.IsRemovable(userID),
		NativeLibraryPath:        r.NativeLibraryPath,
		CPUAbi:                   r.CpuAbi,
		Modules:                  r.moduleInfos(),
	}

	state, hasState := r.GetUserState(userID)
	if hasState {
		info.UID = state.UID
		if len(state.GIDs) > 0 {
			info.GID = state.GIDs[0]
		}
		info.AccessTokenID = state.AccessTokenID
		info.InstallTime = state.InstallTime
		info.UpdateTime = state.UpdateTime
		info.Enabled = state.Enabled
	}

	if flags&types.GetBundleWithAbilities != 0 {
		info.Abilities = r.abilityInfos(state)
	}
	if flags&types.GetBundleWithExtensions != 0 {
		info.Extensions = r.extensionInfos()
	}
	if flags&types.GetBundleWithPermissions != 0 {
		info.Permissions = r.requestedPermissions()
	}
	if flags&types.GetBundleWithHash != 0 {
		info.PackageHash = r.ContentHash
	}
	return info
}

func (r *Record) moduleInfos() []types.ModuleInfo {
	infos := make([]types.ModuleInfo, 0, len(r.Modules))
	for _, m := range r.Modules {
		infos = append(infos, types.ModuleInfo{
			ModuleName: m.Name,
			Package:    m.Package,
			ModuleType: m.Type,
			Entry:      m.IsEntry,
			SourceDir:  m.NativeLibraryPath,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Package < infos[j].Package })
	return infos
}

func (r *Record) abilityInfos(state *types.UserState) []types.AbilityInfo {
	var infos []types.AbilityInfo
	for _, m := range r.Modules {
		for i := range m.Abilities {
			infos = append(infos, r.abilityInfo(m, &m.Abilities[i], state))
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModuleName != infos[j].ModuleName {
			return infos[i].ModuleName < infos[j].ModuleName
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

func (r *Record) abilityInfo(m *Module, a *Ability, state *types.UserState) types.AbilityInfo {
	enabled := true
	if state != nil {
		enabled = state.IsAbilityEnabled(a.Name)
	}
	key := ComponentKey{Bundle: r.Name, Module: m.Package, Component: a.Name}
	return types.AbilityInfo{
		Name:            a.Name,
		BundleName:      r.Name,
		ModuleName:      m.Name,
		Label:           a.Label,
		Description:     a.Description,
		IconPath:        a.Icon,
		Type:            a.Type,
		LaunchMode:      a.LaunchMode,
		URI:             a.URI,
		Visible:         a.Visible,
		Permissions:     a.Permissions,
		BackgroundModes: a.BackgroundModes,
		LauncherAbility: r.IsLauncherApp && key.String() == r.MainEntryAbility,
		Enabled:         enabled,
	}
}

func (r *Record) extensionInfos() []types.ExtensionInfo {
	var infos []types.ExtensionInfo
	for _, m := range r.Modules {
		for i := range m.Extensions {
			e := &m.Extensions[i]
			infos = append(infos, types.ExtensionInfo{
				Name:        e.Name,
				BundleName:  r.Name,
				ModuleName:  m.Name,
				Type:        e.Type,
				URI:         e.URI,
				Visible:     e.Visible,
				Permissions: e.Permissions,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModuleName != infos[j].ModuleName {
			return infos[i].ModuleName < infos[j].ModuleName
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// requestedPermissions returns the deduplicated union of every module's
// requested permissions, sorted for stable output.
func (r *Record) requestedPermissions() []string {
	seen := make(map[string]bool)
	var perms []string
	for _, m := range r.Modules {
		for _, p := range m.RequestPermissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	sort.Strings(perms)
	return perms
}
