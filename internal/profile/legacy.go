package profile

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// Intermediate shapes for the legacy config.json schema. Optional
// booleans and ints are pointers so "unset" stays distinguishable from
// "false"/"0" until defaults are applied in one finalize step.

type legacyProfile struct {
	App          legacyApp                    `json:"app"`
	DeviceConfig map[string]legacyDeviceBlock `json:"deviceConfig"`
	Module       legacyModule                 `json:"module"`
}

type legacyApp struct {
	BundleName string           `json:"bundleName"`
	Vendor     string           `json:"vendor"`
	Version    legacyVersion    `json:"version"`
	APIVersion legacyAPIVersion `json:"apiVersion"`
}

type legacyVersion struct {
	Code                     int32  `json:"code"`
	Name                     string `json:"name"`
	MinCompatibleVersionCode *int32 `json:"minCompatibleVersionCode"`
}

type legacyAPIVersion struct {
	Compatible  int32  `json:"compatible"`
	Target      int32  `json:"target"`
	ReleaseType string `json:"releaseType"`
}

// legacyDeviceBlock is one deviceConfig override block; every field is
// presence-tagged so a block only overwrites what it explicitly sets.
type legacyDeviceBlock struct {
	Process       *string `json:"process"`
	KeepAlive     *bool   `json:"keepAlive"`
	SupportBackup *bool   `json:"supportBackup"`
	Debug         *bool   `json:"debug"`
}

type legacyModule struct {
	Package            string              `json:"package"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	MainAbility        string              `json:"mainAbility"`
	DeviceType         []string            `json:"deviceType"`
	Distro             legacyDistro        `json:"distro"`
	Abilities          []legacyAbility     `json:"abilities"`
	Dependencies       []string            `json:"dependencies"`
	ReqPermissions     []legacyPermission  `json:"reqPermissions"`
	DefPermissions     []legacyPermission  `json:"defPermissions"`
	Shortcuts          []legacyShortcut    `json:"shortcuts"`
	CommonEvents       []legacyCommonEvent `json:"commonEvents"`
	JS                 []legacyJSComponent `json:"js"`
}

type legacyDistro struct {
	DeliveryWithInstall *bool  `json:"deliveryWithInstall"`
	ModuleName          string `json:"moduleName"`
	ModuleType          string `json:"moduleType"`
	InstallationFree    *bool  `json:"installationFree"`
}

type legacyAbility struct {
	Name            string        `json:"name"`
	Label           string        `json:"label"`
	Description     string        `json:"description"`
	Icon            string        `json:"icon"`
	URI             string        `json:"uri"`
	Type            string        `json:"type"`
	LaunchType      string        `json:"launchType"`
	Orientation     string        `json:"orientation"`
	Visible         *bool         `json:"visible"`
	Permissions     []string      `json:"permissions"`
	BackgroundModes []string      `json:"backgroundModes"`
	Skills          []legacySkill `json:"skills"`
	Forms           []legacyForm  `json:"forms"`
}

type legacySkill struct {
	Actions  []string         `json:"actions"`
	Entities []string         `json:"entities"`
	URIs     []legacySkillURI `json:"uris"`
}

type legacySkillURI struct {
	Scheme        string `json:"scheme"`
	Host          string `json:"host"`
	Port          string `json:"port"`
	Path          string `json:"path"`
	PathStartWith string `json:"pathStartWith"`
	PathRegex     string `json:"pathRegex"`
	Type          string `json:"type"`
}

type legacyForm struct {
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Type                string   `json:"type"`
	IsDefault           *bool    `json:"isDefault"`
	UpdateEnabled       *bool    `json:"updateEnabled"`
	ScheduledUpdateTime string   `json:"scheduledUpdateTime"`
	UpdateDuration      *int32   `json:"updateDuration"`
	DefaultDimension    string   `json:"defaultDimension"`
	SupportDimensions   []string `json:"supportDimensions"`
}

type legacyShortcut struct {
	ShortcutID string              `json:"shortcutId"`
	Label      string              `json:"label"`
	Icon       string              `json:"icon"`
	Intents    []legacyWantMapping `json:"intents"`
}

type legacyWantMapping struct {
	TargetBundle string `json:"targetBundle"`
	TargetClass  string `json:"targetClass"`
}

type legacyCommonEvent struct {
	Name       string   `json:"name"`
	Permission string   `json:"permission"`
	Events     []string `json:"events"`
	Data       []string `json:"data"`
	Types      []string `json:"types"`
}

type legacyPermission struct {
	Name string `json:"name"`
}

type legacyJSComponent struct {
	Pages []string `json:"pages"`
}

// parseLegacy deserializes and validates a config.json manifest and
// finalizes it into a one-module record.
func (p *Parser) parseLegacy(data []byte, archive Introspector, opts Options) (*bundle.Record, error) {
	var prof legacyProfile
	if err := sonic.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBadProfile, err)
	}

	var acc errAcc
	acc.add(ValidateBundleName(prof.App.BundleName))
	if prof.App.Version.Code <= 0 {
		acc.addf("%w: version code must be positive, got %d", types.ErrProfilePropCheck, prof.App.Version.Code)
	}

	liteOnly := isLiteOnly(prof.Module.DeviceType)
	pkg := prof.Module.Package
	moduleName := prof.Module.Distro.ModuleName
	if pkg == "" {
		if !liteOnly {
			acc.addf("%w: module package is required", types.ErrProfilePropCheck)
		}
		pkg = prof.App.BundleName
	}
	if moduleName == "" {
		if !liteOnly {
			acc.addf("%w: distro moduleName is required", types.ErrProfilePropCheck)
		}
		moduleName = prof.App.BundleName
	}
	if acc.err != nil {
		return nil, acc.err
	}

	r := bundle.NewRecord(prof.App.BundleName)
	r.VersionCode = prof.App.Version.Code
	r.VersionName = prof.App.Version.Name
	r.MinCompatibleVersionCode = int32Or(prof.App.Version.MinCompatibleVersionCode, prof.App.Version.Code)
	r.CompatibleAPIVersion = prof.App.APIVersion.Compatible
	r.TargetAPIVersion = prof.App.APIVersion.Target
	r.ReleaseType = prof.App.APIVersion.ReleaseType
	r.Vendor = prof.App.Vendor

	// Merge the default block first, then the runtime device type's, so
	// explicitly-set fields win in that order.
	applyDeviceBlock(r, prof.DeviceConfig["default"])
	applyDeviceBlock(r, prof.DeviceConfig[p.deviceType])

	r.CpuAbi, r.NativeLibraryPath = p.resolveABI(archive)

	m := &bundle.Module{
		Package:             pkg,
		Name:                moduleName,
		Description:         prof.Module.Description,
		Type:                prof.Module.Distro.ModuleType,
		IsEntry:             prof.Module.Distro.ModuleType == "entry",
		Legacy:              true,
		MainElement:         prof.Module.MainAbility,
		DeliveryWithInstall: boolOr(prof.Module.Distro.DeliveryWithInstall, true),
		InstallationFree:    boolOr(prof.Module.Distro.InstallationFree, false),
		DeviceTypes:         prof.Module.DeviceType,
		Dependencies:        prof.Module.Dependencies,
		RequestPermissions:  permissionNames(prof.Module.ReqPermissions),
		DefinePermissions:   permissionNames(prof.Module.DefPermissions),
		NativeLibraryPath:   r.NativeLibraryPath,
	}

	for _, a := range prof.Module.Abilities {
		ability := bundle.Ability{
			Name:            a.Name,
			Label:           a.Label,
			Description:     a.Description,
			Icon:            a.Icon,
			Visible:         boolOr(a.Visible, false),
			Type:            a.Type,
			LaunchMode:      a.LaunchType,
			Orientation:     a.Orientation,
			Permissions:     a.Permissions,
			BackgroundModes: backgroundModesMask(a.BackgroundModes),
			URI:             a.URI,
			Skills:          convertLegacySkills(a.Skills),
		}
		m.Abilities = append(m.Abilities, ability)
		for _, f := range a.Forms {
			m.Forms = append(m.Forms, bundle.Form{
				Name:            f.Name,
				Ability:         a.Name,
				Description:     f.Description,
				Type:            f.Type,
				IsDefault:       boolOr(f.IsDefault, false),
				UpdateEnabled:   boolOr(f.UpdateEnabled, false),
				ScheduledUpdate: f.ScheduledUpdateTime,
				UpdateDuration:  int32Or(f.UpdateDuration, 0),
				DefaultDim:      f.DefaultDimension,
				SupportDims:     f.SupportDimensions,
			})
		}
	}

	for _, s := range prof.Module.Shortcuts {
		shortcut := bundle.Shortcut{ID: s.ShortcutID, Label: s.Label, Icon: s.Icon}
		for _, i := range s.Intents {
			shortcut.Intents = append(shortcut.Intents, bundle.WantMapping{
				TargetBundle: i.TargetBundle,
				TargetClass:  i.TargetClass,
			})
		}
		m.Shortcuts = append(m.Shortcuts, shortcut)
	}
	for _, e := range prof.Module.CommonEvents {
		m.CommonEvents = append(m.CommonEvents, bundle.CommonEvent{
			Name:       e.Name,
			Permission: e.Permission,
			Events:     e.Events,
			Data:       e.Data,
			Types:      e.Types,
		})
	}

	finalize(r, m, opts)
	return r, nil
}

func applyDeviceBlock(r *bundle.Record, block legacyDeviceBlock) {
	if block.KeepAlive != nil {
		r.KeepAlive = *block.KeepAlive
	}
	if block.Debug != nil {
		r.DebugMode = *block.Debug
	}
}

func convertLegacySkills(skills []legacySkill) []bundle.Skill {
	out := make([]bundle.Skill, 0, len(skills))
	for _, s := range skills {
		skill := bundle.Skill{Actions: s.Actions, Entities: s.Entities}
		for _, u := range s.URIs {
			skill.URIs = append(skill.URIs, bundle.SkillURI{
				Scheme:        u.Scheme,
				Host:          u.Host,
				Port:          u.Port,
				Path:          u.Path,
				PathStartWith: u.PathStartWith,
				PathRegex:     u.PathRegex,
				Type:          u.Type,
			})
		}
		out = append(out, skill)
	}
	return out
}

func permissionNames(perms []legacyPermission) []string {
	if len(perms) == 0 {
		return nil
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}

// finalize attaches the module, seeds the entry-ability fields, and
// applies privilege gating. Shared by both schema parsers.
func finalize(r *bundle.Record, m *bundle.Module, opts Options) {
	r.AddModule(m)

	if name, launcher, found := detectEntry(m.Abilities); found {
		key := bundle.ComponentKey{Bundle: r.Name, Module: m.Package, Component: name}
		r.MainEntryAbility = key.String()
		if m.IsEntry {
			r.EntryModuleName = m.Package
		}
		r.IsLauncherApp = launcher && opts.PreInstalled
	}

	applyPrivilegeGating(r, opts)
}
