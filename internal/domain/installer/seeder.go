package installer

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// PreinstallEntry names one system package seeded at boot.
type PreinstallEntry struct {
	Path      string `yaml:"path"`
	UserID    *int32 `yaml:"userId"`
	APL       string `yaml:"apl"`
	SystemApp *bool  `yaml:"systemApp"`
}

type preinstallList struct {
	Preinstall []PreinstallEntry `yaml:"preinstall"`
}

// Seeder installs the system packages listed in the preinstall file at
// service start.
type Seeder struct {
	installer *Installer
	listPath  string
}

// NewSeeder creates a seeder over one preinstall list file.
func NewSeeder(installer *Installer, listPath string) *Seeder {
	return &Seeder{installer: installer, listPath: listPath}
}

// Seed installs every listed package that is not already installed.
// Individual failures are logged and skipped so one broken image
// package cannot block boot.
func (s *Seeder) Seed() (int, error) {
	data, err := os.ReadFile(s.listPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.installer.logger.Info("no preinstall list", zap.String("path", s.listPath))
			return 0, nil
		}
		return 0, fmt.Errorf("read preinstall list %s: %w", s.listPath, err)
	}

	var list preinstallList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("parse preinstall list %s: %w", s.listPath, err)
	}

	seeded := 0
	for _, entry := range list.Preinstall {
		userID := int32(types.DefaultUserID)
		if entry.UserID != nil {
			userID = *entry.UserID
		}
		systemApp := true
		if entry.SystemApp != nil {
			systemApp = *entry.SystemApp
		}

		name, err := s.installer.Install(entry.Path, Params{
			UserID:       userID,
			PreInstalled: true,
			SystemApp:    systemApp,
			APL:          entry.APL,
		})
		if err != nil {
			s.installer.logger.Warn("preinstall failed",
				zap.String("path", entry.Path), zap.Error(err))
			continue
		}
		s.installer.logger.Info("preinstalled bundle", zap.String("bundle", name))
		seeded++
	}
	return seeded, nil
}
