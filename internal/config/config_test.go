package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

const testAPIKey = "owm-test-key"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "https://api.openweathermap.org", cfg.BaseURL)
	assert.Equal(t, "3.0", cfg.APIVersion)
	assert.Equal(t, []string{"minutely", "hourly", "daily", "alerts"}, cfg.Exclude)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, cfg.HasLocation)
	assert.Equal(t, StateBackendFile, cfg.StateBackend)
	assert.Equal(t, "weathersync.state", cfg.StatePath)
	assert.Equal(t, ApplyModeExec, cfg.ApplyMode)
	assert.Equal(t, "/usr/local/bin/mcrcon", cfg.MCRCONPath)
	assert.Equal(t, "localhost", cfg.RCONHost)
	assert.Equal(t, 25575, cfg.RCONPort)
	assert.Equal(t, 10*time.Second, cfg.ApplyTimeout)
	assert.Equal(t, 3600, cfg.WeatherDuration)
	assert.True(t, cfg.PersistOnApplyFailure)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "weather-sync-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY", testAPIKey)
	t.Setenv("OWM_BASE_URL", "http://localhost:8081/")
	t.Setenv("OWM_API_VERSION", "2.5")
	t.Setenv("OWM_EXCLUDE", "hourly, minutely,daily")
	t.Setenv("OWM_TIMEOUT", "5s")
	t.Setenv("WEATHER_LAT", "36.0178911")
	t.Setenv("WEATHER_LON", "-78.8083965")
	t.Setenv("STATE_BACKEND", "sqlite")
	t.Setenv("STATE_PATH", "/var/lib/weathersync/state.db")
	t.Setenv("APPLY_MODE", "rcon")
	t.Setenv("MCRCON_HOST", "mc.example.com")
	t.Setenv("MCRCON_PORT", "25576")
	t.Setenv("MCRCON_PASS", "hunter2")
	t.Setenv("APPLY_TIMEOUT", "3s")
	t.Setenv("WEATHER_DURATION", "600")
	t.Setenv("PERSIST_ON_APPLY_FAILURE", "false")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-events")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, cfg.APIKey)
	assert.Equal(t, "http://localhost:8081", cfg.BaseURL)
	assert.Equal(t, "2.5", cfg.APIVersion)
	assert.Equal(t, []string{"hourly", "minutely", "daily"}, cfg.Exclude)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.HasLocation)
	assert.Equal(t, domain.Location{Lat: 36.0178911, Lon: -78.8083965}, cfg.Location)
	assert.Equal(t, StateBackendSQLite, cfg.StateBackend)
	assert.Equal(t, "/var/lib/weathersync/state.db", cfg.StatePath)
	assert.Equal(t, ApplyModeRCON, cfg.ApplyMode)
	assert.Equal(t, "mc.example.com", cfg.RCONHost)
	assert.Equal(t, 25576, cfg.RCONPort)
	assert.Equal(t, "hunter2", cfg.RCONPassword)
	assert.Equal(t, 3*time.Second, cfg.ApplyTimeout)
	assert.Equal(t, 600, cfg.WeatherDuration)
	assert.False(t, cfg.PersistOnApplyFailure)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-events", cfg.KafkaTopic)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_APIKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".creds")
	require.NoError(t, os.WriteFile(path, []byte(testAPIKey+"\nsecond line ignored\n"), 0o600))
	t.Setenv("OPENWEATHERMAP_API_KEY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, cfg.APIKey)
}

func TestLoad_APIKeyEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".creds")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("OPENWEATHERMAP_API_KEY_FILE", path)
	t.Setenv("OPENWEATHERMAP_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, cfg.APIKey)
}

func TestLoad_MissingAPIKeyFile(t *testing.T) {
	t.Setenv("OPENWEATHERMAP_API_KEY_FILE", filepath.Join(t.TempDir(), "missing"))
	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "OPENWEATHERMAP_API_KEY_FILE")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"OWM_TIMEOUT", "bad", "OWM_TIMEOUT"},
		{"OWM_TIMEOUT", "-1s", "OWM_TIMEOUT"},
		{"APPLY_TIMEOUT", "0s", "APPLY_TIMEOUT"},
		{"MCRCON_PORT", "0", "MCRCON_PORT"},
		{"MCRCON_PORT", "70000", "MCRCON_PORT"},
		{"WEATHER_DURATION", "soon", "WEATHER_DURATION"},
		{"PERSIST_ON_APPLY_FAILURE", "maybe", "PERSIST_ON_APPLY_FAILURE"},
		{"STATE_BACKEND", "redis", "STATE_BACKEND"},
		{"APPLY_MODE", "ssh", "APPLY_MODE"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidLocation(t *testing.T) {
	t.Setenv("WEATHER_LAT", "91")
	t.Setenv("WEATHER_LON", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_LAT")

	t.Setenv("WEATHER_LAT", "45")
	t.Setenv("WEATHER_LON", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_LON")
}

func TestValidateFetch(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateFetch()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "OPENWEATHERMAP_API_KEY")

	cfg.APIKey = testAPIKey
	err = cfg.ValidateFetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_LAT")

	cfg.HasLocation = true
	assert.NoError(t, cfg.ValidateFetch())
}

func TestValidateAPIKey(t *testing.T) {
	cfg := &Config{}
	require.ErrorIs(t, cfg.ValidateAPIKey(), ErrInvalid)

	cfg.APIKey = testAPIKey
	assert.NoError(t, cfg.ValidateAPIKey(), "location is not needed")
}

func TestValidateSync_Exec(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mcrcon")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o600))

	cfg := &Config{
		APIKey:       testAPIKey,
		HasLocation:  true,
		StatePath:    filepath.Join(dir, "state"),
		ApplyMode:    ApplyModeExec,
		MCRCONPath:   bin,
		RCONPassword: "secret",
	}

	err := cfg.ValidateSync()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "not executable")

	require.NoError(t, os.Chmod(bin, 0o700))
	assert.NoError(t, cfg.ValidateSync())

	cfg.MCRCONPath = filepath.Join(dir, "missing")
	err = cfg.ValidateSync()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "MCRCON_PATH")
}

func TestValidateSync_RequiresPassword(t *testing.T) {
	cfg := &Config{APIKey: testAPIKey, HasLocation: true, StatePath: "state", ApplyMode: ApplyModeRCON}
	err := cfg.ValidateSync()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "MCRCON_PASS")

	cfg.RCONPassword = "secret"
	assert.NoError(t, cfg.ValidateSync(), "rcon mode does not need the mcrcon binary")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WEATHERSYNC_TEST_VAR=from-file\nMCRCON_HOST=from-file\n"), 0o600))
	t.Setenv("MCRCON_HOST", "from-env")
	t.Cleanup(func() { os.Unsetenv("WEATHERSYNC_TEST_VAR") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("WEATHERSYNC_TEST_VAR"))
	assert.Equal(t, "from-env", os.Getenv("MCRCON_HOST"), "real environment wins")

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}
