package profile

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// Intermediate shapes for the current module.json schema.

type currentProfile struct {
	App    currentApp    `json:"app"`
	Module currentModule `json:"module"`
}

type currentApp struct {
	BundleName               string `json:"bundleName"`
	Vendor                   string `json:"vendor"`
	VersionCode              int32  `json:"versionCode"`
	VersionName              string `json:"versionName"`
	MinCompatibleVersionCode *int32 `json:"minCompatibleVersionCode"`
	MinAPIVersion            int32  `json:"minAPIVersion"`
	TargetAPIVersion         int32  `json:"targetAPIVersion"`
	APIReleaseType           string `json:"apiReleaseType"`
	Debug                    *bool  `json:"debug"`
	KeepAlive                *bool  `json:"keepAlive"`
	Singleton                *bool  `json:"singleton"`
	Removable                *bool  `json:"removable"`
	UserDataClearable        *bool  `json:"userDataClearable"`
	Accessible               *bool  `json:"accessible"`

	// Per-device override blocks sit as named siblings under app and
	// apply only when the runtime's device type matches.
	Phone    *currentDeviceBlock `json:"phone"`
	Tablet   *currentDeviceBlock `json:"tablet"`
	TV       *currentDeviceBlock `json:"tv"`
	Car      *currentDeviceBlock `json:"car"`
	Wearable *currentDeviceBlock `json:"wearable"`
}

type currentDeviceBlock struct {
	MinAPIVersion     *int32 `json:"minAPIVersion"`
	KeepAlive         *bool  `json:"keepAlive"`
	Singleton         *bool  `json:"singleton"`
	Removable         *bool  `json:"removable"`
	UserDataClearable *bool  `json:"userDataClearable"`
	Accessible        *bool  `json:"accessible"`
}

func (a *currentApp) deviceBlock(deviceType string) *currentDeviceBlock {
	switch deviceType {
	case "phone":
		return a.Phone
	case "tablet":
		return a.Tablet
	case "tv":
		return a.TV
	case "car":
		return a.Car
	case "wearable":
		return a.Wearable
	default:
		return nil
	}
}

type currentModule struct {
	Name                string               `json:"name"`
	Type                string               `json:"type"`
	Description         string               `json:"description"`
	MainElement         string               `json:"mainElement"`
	DeviceTypes         []string             `json:"deviceTypes"`
	DeliveryWithInstall *bool                `json:"deliveryWithInstall"`
	InstallationFree    *bool                `json:"installationFree"`
	Pages               string               `json:"pages"`
	Dependencies        []string             `json:"dependencies"`
	Abilities           []currentAbility     `json:"abilities"`
	ExtensionAbilities  []currentExtension   `json:"extensionAbilities"`
	RequestPermissions  []currentPermission  `json:"requestPermissions"`
	DefinePermissions   []currentPermission  `json:"definePermissions"`
	Shortcuts           []legacyShortcut     `json:"shortcuts"`
	CommonEvents        []legacyCommonEvent  `json:"commonEvents"`
}

type currentAbility struct {
	Name            string        `json:"name"`
	SrcEntrance     string        `json:"srcEntrance"`
	Label           string        `json:"label"`
	Description     string        `json:"description"`
	Icon            string        `json:"icon"`
	LaunchType      string        `json:"launchType"`
	Orientation     string        `json:"orientation"`
	Visible         *bool         `json:"visible"`
	Permissions     []string      `json:"permissions"`
	BackgroundModes []string      `json:"backgroundModes"`
	URI             string        `json:"uri"`
	Skills          []legacySkill `json:"skills"`
}

type currentExtension struct {
	Name        string        `json:"name"`
	SrcEntrance string        `json:"srcEntrance"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Type        string        `json:"type"`
	Visible     *bool         `json:"visible"`
	Permissions []string      `json:"permissions"`
	URI         string        `json:"uri"`
	Skills      []legacySkill `json:"skills"`
}

type currentPermission struct {
	Name string `json:"name"`
}

// parseCurrent deserializes and validates a module.json manifest and
// finalizes it into a one-module record. The module name doubles as the
// package name in this schema.
func (p *Parser) parseCurrent(data []byte, archive Introspector, opts Options) (*bundle.Record, error) {
	var prof currentProfile
	if err := sonic.Unmarshal(data, &prof); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBadProfile, err)
	}

	var acc errAcc
	acc.add(ValidateBundleName(prof.App.BundleName))
	if prof.App.VersionCode <= 0 {
		acc.addf("%w: versionCode must be positive, got %d", types.ErrProfilePropCheck, prof.App.VersionCode)
	}
	if prof.App.VersionName == "" {
		acc.addf("%w: versionName is required", types.ErrProfilePropCheck)
	}
	if prof.App.MinAPIVersion <= 0 {
		acc.addf("%w: minAPIVersion is required", types.ErrProfilePropCheck)
	}
	if prof.App.TargetAPIVersion <= 0 {
		acc.addf("%w: targetAPIVersion is required", types.ErrProfilePropCheck)
	}
	if prof.Module.Name == "" {
		acc.addf("%w: module name is required", types.ErrProfilePropCheck)
	}
	if prof.Module.Type == "" {
		acc.addf("%w: module type is required", types.ErrProfilePropCheck)
	}
	if prof.Module.MainElement == "" {
		acc.addf("%w: module mainElement is required", types.ErrProfilePropCheck)
	}
	if len(prof.Module.DeviceTypes) == 0 {
		acc.addf("%w: module deviceTypes is required", types.ErrProfilePropCheck)
	}
	if prof.Module.DeliveryWithInstall == nil {
		acc.addf("%w: module deliveryWithInstall is required", types.ErrProfilePropCheck)
	}
	if prof.Module.Pages == "" {
		acc.addf("%w: module pages is required", types.ErrProfilePropCheck)
	}
	if acc.err != nil {
		return nil, acc.err
	}

	r := bundle.NewRecord(prof.App.BundleName)
	r.VersionCode = prof.App.VersionCode
	r.VersionName = prof.App.VersionName
	r.MinCompatibleVersionCode = int32Or(prof.App.MinCompatibleVersionCode, prof.App.VersionCode)
	r.CompatibleAPIVersion = prof.App.MinAPIVersion
	r.TargetAPIVersion = prof.App.TargetAPIVersion
	r.ReleaseType = prof.App.APIReleaseType
	r.Vendor = prof.App.Vendor
	r.DebugMode = boolOr(prof.App.Debug, false)
	r.KeepAlive = boolOr(prof.App.KeepAlive, false)
	r.Singleton = boolOr(prof.App.Singleton, false)
	r.BundleRemovable = boolOr(prof.App.Removable, true)
	r.UserDataClearable = boolOr(prof.App.UserDataClearable, true)
	r.Accessible = boolOr(prof.App.Accessible, false)

	if block := prof.App.deviceBlock(p.deviceType); block != nil {
		if block.MinAPIVersion != nil {
			r.CompatibleAPIVersion = *block.MinAPIVersion
		}
		if block.KeepAlive != nil {
			r.KeepAlive = *block.KeepAlive
		}
		if block.Singleton != nil {
			r.Singleton = *block.Singleton
		}
		if block.Removable != nil {
			r.BundleRemovable = *block.Removable
		}
		if block.UserDataClearable != nil {
			r.UserDataClearable = *block.UserDataClearable
		}
		if block.Accessible != nil {
			r.Accessible = *block.Accessible
		}
	}

	r.CpuAbi, r.NativeLibraryPath = p.resolveABI(archive)

	m := &bundle.Module{
		Package:             prof.Module.Name,
		Name:                prof.Module.Name,
		Description:         prof.Module.Description,
		Type:                prof.Module.Type,
		IsEntry:             prof.Module.Type == "entry",
		MainElement:         prof.Module.MainElement,
		Pages:               prof.Module.Pages,
		DeliveryWithInstall: *prof.Module.DeliveryWithInstall,
		InstallationFree:    boolOr(prof.Module.InstallationFree, false),
		DeviceTypes:         prof.Module.DeviceTypes,
		Dependencies:        prof.Module.Dependencies,
		RequestPermissions:  currentPermissionNames(prof.Module.RequestPermissions),
		DefinePermissions:   currentPermissionNames(prof.Module.DefinePermissions),
		NativeLibraryPath:   r.NativeLibraryPath,
	}

	for _, a := range prof.Module.Abilities {
		m.Abilities = append(m.Abilities, bundle.Ability{
			Name:            a.Name,
			Label:           a.Label,
			Description:     a.Description,
			Icon:            a.Icon,
			Visible:         boolOr(a.Visible, false),
			LaunchMode:      a.LaunchType,
			Orientation:     a.Orientation,
			Permissions:     a.Permissions,
			BackgroundModes: backgroundModesMask(a.BackgroundModes),
			URI:             a.URI,
			SrcEntrance:     a.SrcEntrance,
			Skills:          convertLegacySkills(a.Skills),
		})
	}
	for _, e := range prof.Module.ExtensionAbilities {
		m.Extensions = append(m.Extensions, bundle.Extension{
			Name:        e.Name,
			Label:       e.Label,
			Description: e.Description,
			Icon:        e.Icon,
			Visible:     boolOr(e.Visible, false),
			Type:        e.Type,
			Permissions: e.Permissions,
			URI:         e.URI,
			SrcEntrance: e.SrcEntrance,
			Skills:      convertLegacySkills(e.Skills),
		})
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

func currentPermissionNames(perms []currentPermission) []string {
	if len(perms) == 0 {
		return nil
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}
