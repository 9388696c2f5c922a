package profile

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/BundleOS/backend/internal/domain/bundle"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Manifest file names; their presence selects the schema generation.
const (
	LegacyManifest  = "config.json"
	CurrentManifest = "module.json"
)

// Home-intent constants used for entry-ability and launcher detection.
const (
	ActionHome               = "action.system.home"
	EntityHome               = "entity.system.home"
	FlagHomeIntentFromSystem = "flag.home.intent.from.system"
)

// AbiDefault is the placeholder ABI recorded when a package carries no
// native libraries.
const AbiDefault = "default"

// Lightweight device classes exempt from the legacy package-name
// requirement.
var liteDeviceTypes = map[string]bool{
	"liteWearable": true,
	"smartVision":  true,
}

var backgroundModeBits = map[string]uint32{
	"dataTransfer":          1 << 0,
	"audioPlayback":         1 << 1,
	"audioRecording":        1 << 2,
	"location":              1 << 3,
	"bluetoothInteraction":  1 << 4,
	"multiDeviceConnection": 1 << 5,
	"wifiInteraction":       1 << 6,
	"voip":                  1 << 7,
	"taskKeeping":           1 << 8,
}

// Introspector lets the parser probe and read the package archive
// without owning it.
type Introspector interface {
	HasEntry(name string) bool
	HasDir(dir string) bool
	ReadEntry(name string) ([]byte, error)
}

// Options carries install-time facts the manifest alone cannot declare.
type Options struct {
	// PreInstalled marks a package seeded from the system image.
	PreInstalled bool
	// SystemApp unlocks privileged app flags (keep-alive, singleton).
	SystemApp bool
}

// Parser turns a package manifest into a one-module bundle record.
type Parser struct {
	deviceType string
	abiList    []string
	logger     *logging.Logger
	metrics    *monitoring.Metrics
}

// New creates a parser for the given runtime device type and ABI
// preference order.
func New(deviceType string, abiList []string, logger *logging.Logger) *Parser {
	return &Parser{
		deviceType: deviceType,
		abiList:    abiList,
		logger:     logger,
	}
}

// WithMetrics adds metrics tracking to the parser.
func (p *Parser) WithMetrics(metrics *monitoring.Metrics) *Parser {
	p.metrics = metrics
	return p
}

// Parse selects the schema by manifest presence and produces a record
// holding exactly the one module the package delivers. The two schemas
// are mutually exclusive per package.
func (p *Parser) Parse(archive Introspector, opts Options) (*bundle.Record, error) {
	switch {
	case archive.HasEntry(CurrentManifest):
		return p.timed("current", func() (*bundle.Record, error) {
			data, err := archive.ReadEntry(CurrentManifest)
			if err != nil {
				return nil, err
			}
			return p.parseCurrent(data, archive, opts)
		})
	case archive.HasEntry(LegacyManifest):
		return p.timed("legacy", func() (*bundle.Record, error) {
			data, err := archive.ReadEntry(LegacyManifest)
			if err != nil {
				return nil, err
			}
			return p.parseLegacy(data, archive, opts)
		})
	default:
		return nil, fmt.Errorf("%w: package has no manifest", types.ErrBadProfile)
	}
}

func (p *Parser) timed(schema string, parse func() (*bundle.Record, error)) (*bundle.Record, error) {
	start := time.Now()
	r, err := parse()
	status := "success"
	if err != nil {
		status = "error"
		p.logger.Warn("manifest parse failed", zap.String("schema", schema), zap.Error(err))
	}
	if p.metrics != nil {
		p.metrics.RecordParse(schema, status, time.Since(start))
	}
	return r, err
}

// ValidateBundleName enforces the bundle-name rule: 7 to 255 chars,
// first a letter, the rest letters, digits, dots, or underscores.
func ValidateBundleName(name string) error {
	if len(name) < 7 || len(name) > 255 {
		return fmt.Errorf("%w: bundle name %q length out of range", types.ErrProfilePropCheck, name)
	}
	first := name[0]
	if !(first >= 'a' && first <= 'z') && !(first >= 'A' && first <= 'Z') {
		return fmt.Errorf("%w: bundle name %q must start with a letter", types.ErrProfilePropCheck, name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_':
		default:
			return fmt.Errorf("%w: bundle name %q has invalid character %q", types.ErrProfilePropCheck, name, c)
		}
	}
	return nil
}

// resolveABI probes libs/<abi>/ in preference order and falls back to
// the default placeholder when the package bundles no native code.
func (p *Parser) resolveABI(archive Introspector) (abi, libPath string) {
	for _, candidate := range p.abiList {
		if archive.HasDir("libs/" + candidate) {
			return candidate, "libs/" + candidate
		}
	}
	return AbiDefault, ""
}

// isLiteOnly reports whether every declared device type is a lightweight
// class.
func isLiteOnly(deviceTypes []string) bool {
	if len(deviceTypes) == 0 {
		return false
	}
	for _, dt := range deviceTypes {
		if !liteDeviceTypes[dt] {
			return false
		}
	}
	return true
}

func backgroundModesMask(modes []string) uint32 {
	var mask uint32
	for _, m := range modes {
		mask |= backgroundModeBits[m]
	}
	return mask
}

// detectEntry finds the first ability whose skills declare both the
// home action and the home entity, and whether the system-launcher
// entity accompanies it.
func detectEntry(abilities []bundle.Ability) (name string, launcher bool, found bool) {
	for _, a := range abilities {
		for _, s := range a.Skills {
			if !contains(s.Actions, ActionHome) || !contains(s.Entities, EntityHome) {
				continue
			}
			return a.Name, contains(s.Entities, FlagHomeIntentFromSystem), true
		}
	}
	return "", false, false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// errAcc keeps only the first validation failure so a parse surfaces a
// single terminal error.
type errAcc struct {
	err error
}

func (e *errAcc) add(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

func (e *errAcc) addf(format string, args ...interface{}) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

// applyPrivilegeGating clears privileged flags a non-system package is
// not allowed to claim.
func applyPrivilegeGating(r *bundle.Record, opts Options) {
	r.IsSystemApp = opts.SystemApp
	r.IsPreInstalled = opts.PreInstalled
	if !opts.SystemApp || !opts.PreInstalled {
		r.KeepAlive = false
		r.Singleton = false
		r.Accessible = false
		r.UserDataClearable = true
	}
	if opts.PreInstalled {
		r.BundleRemovable = false
	}
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func int32Or(p *int32, def int32) int32 {
	if p != nil {
		return *p
	}
	return def
}
