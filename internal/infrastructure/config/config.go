package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig
	Device    DeviceConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8300"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// DeviceConfig describes the runtime device this service manages bundles for.
type DeviceConfig struct {
	// Type selects which manifest device-override block applies.
	Type string `envconfig:"DEVICE_TYPE" default:"phone"`
	// AbiList is the preference-ordered native ABI list of the device.
	AbiList []string `envconfig:"ABI_LIST" default:"arm64-v8a,armeabi-v7a,armeabi"`
	// DistributedFiles enables the distributed-file share directories.
	DistributedFiles bool `envconfig:"DISTRIBUTED_FILES" default:"false"`
}

// StorageConfig holds the on-disk roots the installer operates on.
type StorageConfig struct {
	CodeRoot    string `envconfig:"CODE_ROOT" default:"/data/app/el1/bundle/public"`
	DataRoot    string `envconfig:"DATA_ROOT" default:"/data/app"`
	ServiceRoot string `envconfig:"SERVICE_ROOT" default:"/data/service/el1/public/bms"`
	DistRoot    string `envconfig:"DIST_ROOT" default:"/mnt/hmdfs"`
	// PreinstallList is the YAML file naming system packages seeded at boot.
	PreinstallList string `envconfig:"PREINSTALL_LIST" default:"/system/etc/bundle/preinstall.yaml"`
	// BaseUID is the first UID handed to an installed bundle.
	BaseUID int32 `envconfig:"BASE_UID" default:"10000"`
	// DatabaseGID owns every bundle database directory.
	DatabaseGID int32 `envconfig:"DATABASE_GID" default:"3012"`
	// DistributedGID owns non-account distributed-file directories.
	DistributedGID int32 `envconfig:"DISTRIBUTED_GID" default:"1009"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("BMS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8300",
			Host: "0.0.0.0",
		},
		Device: DeviceConfig{
			Type:    "phone",
			AbiList: []string{"arm64-v8a", "armeabi-v7a", "armeabi"},
		},
		Storage: StorageConfig{
			CodeRoot:       "/data/app/el1/bundle/public",
			DataRoot:       "/data/app",
			ServiceRoot:    "/data/service/el1/public/bms",
			DistRoot:       "/mnt/hmdfs",
			PreinstallList: "/system/etc/bundle/preinstall.yaml",
			BaseUID:        10000,
			DatabaseGID:    3012,
			DistributedGID: 1009,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
