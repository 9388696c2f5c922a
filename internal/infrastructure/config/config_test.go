package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8300", cfg.Server.Port)
	assert.Equal(t, "phone", cfg.Device.Type)
	assert.Equal(t, []string{"arm64-v8a", "armeabi-v7a", "armeabi"}, cfg.Device.AbiList)
	assert.Equal(t, "/data/app/el1/bundle/public", cfg.Storage.CodeRoot)
	assert.Equal(t, "/data/service/el1/public/bms", cfg.Storage.ServiceRoot)
	assert.EqualValues(t, 10000, cfg.Storage.BaseUID)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BMS_PORT", "9000")
	t.Setenv("BMS_DEVICE_TYPE", "liteWearable")
	t.Setenv("BMS_ABI_LIST", "armeabi")
	t.Setenv("BMS_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "liteWearable", cfg.Device.Type)
	assert.Equal(t, []string{"armeabi"}, cfg.Device.AbiList)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Server.Port)
}
