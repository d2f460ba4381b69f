package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

// ErrInvalid wraps every configuration error so callers can map them to a
// single exit code.
var ErrInvalid = errors.New("invalid configuration")

const (
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"

	ApplyModeExec = "exec"
	ApplyModeRCON = "rcon"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// OpenWeatherMap.
	APIKey      string
	BaseURL     string
	APIVersion  string
	Exclude     []string
	Timeout     time.Duration
	Location    domain.Location
	HasLocation bool

	// Persisted state slot.
	StateBackend string
	StatePath    string

	// Remote console.
	ApplyMode       string
	MCRCONPath      string
	RCONHost        string
	RCONPort        int
	RCONPassword    string
	ApplyTimeout    time.Duration
	WeatherDuration int

	PersistOnApplyFailure bool

	// Optional sinks.
	KafkaBrokers   []string
	KafkaTopic     string
	PushgatewayURL string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// LoadEnvFile loads variables from a dotenv file without overriding the real
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, invalid(err)
	}

	apiKey, err := loadAPIKey()
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("OWM_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	applyTimeout, err := parseDuration("APPLY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	port, err := parsePositiveInt("MCRCON_PORT", "25575")
	if err != nil {
		return nil, err
	}
	if port > 65535 {
		return nil, invalid(errors.New("MCRCON_PORT must be between 1 and 65535"))
	}
	duration, err := parsePositiveInt("WEATHER_DURATION", "3600")
	if err != nil {
		return nil, err
	}
	persistOnFailure, err := strconv.ParseBool(sharedcfg.EnvOrDefault("PERSIST_ON_APPLY_FAILURE", "true"))
	if err != nil {
		return nil, invalid(errors.New("invalid PERSIST_ON_APPLY_FAILURE"))
	}

	loc, hasLoc, err := parseLocation()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(sharedcfg.EnvOrDefault("OWM_BASE_URL", "https://api.openweathermap.org"), "/"),
		APIVersion:  sharedcfg.EnvOrDefault("OWM_API_VERSION", "3.0"),
		Exclude:     splitList(sharedcfg.EnvOrDefault("OWM_EXCLUDE", "minutely,hourly,daily,alerts")),
		Timeout:     timeout,
		Location:    loc,
		HasLocation: hasLoc,

		StateBackend: sharedcfg.EnvOrDefault("STATE_BACKEND", StateBackendFile),
		StatePath:    sharedcfg.EnvOrDefault("STATE_PATH", "weathersync.state"),

		ApplyMode:       sharedcfg.EnvOrDefault("APPLY_MODE", ApplyModeExec),
		MCRCONPath:      sharedcfg.EnvOrDefault("MCRCON_PATH", "/usr/local/bin/mcrcon"),
		RCONHost:        sharedcfg.EnvOrDefault("MCRCON_HOST", "localhost"),
		RCONPort:        port,
		RCONPassword:    os.Getenv("MCRCON_PASS"),
		ApplyTimeout:    applyTimeout,
		WeatherDuration: duration,

		PersistOnApplyFailure: persistOnFailure,

		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-sync-events"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	switch cfg.StateBackend {
	case StateBackendFile, StateBackendSQLite:
	default:
		return nil, invalid(fmt.Errorf("STATE_BACKEND must be %q or %q", StateBackendFile, StateBackendSQLite))
	}
	switch cfg.ApplyMode {
	case ApplyModeExec, ApplyModeRCON:
	default:
		return nil, invalid(fmt.Errorf("APPLY_MODE must be %q or %q", ApplyModeExec, ApplyModeRCON))
	}

	return cfg, nil
}

// ValidateAPIKey checks that an OpenWeatherMap key was provided.
func (c *Config) ValidateAPIKey() error {
	if c.APIKey == "" {
		return invalid(errors.New("OPENWEATHERMAP_API_KEY is required"))
	}
	return nil
}

// ValidateFetch checks the settings needed to query OpenWeatherMap.
func (c *Config) ValidateFetch() error {
	if err := c.ValidateAPIKey(); err != nil {
		return err
	}
	if !c.HasLocation {
		return invalid(errors.New("WEATHER_LAT and WEATHER_LON are required"))
	}
	return nil
}

// ValidateSync checks everything a full cycle needs, including the apply
// action. It stats the mcrcon executable so a broken install fails before
// any network activity.
func (c *Config) ValidateSync() error {
	if err := c.ValidateFetch(); err != nil {
		return err
	}
	if c.StatePath == "" {
		return invalid(errors.New("STATE_PATH is required"))
	}
	if c.RCONPassword == "" {
		return invalid(errors.New("MCRCON_PASS is required"))
	}
	if c.ApplyMode != ApplyModeExec {
		return nil
	}
	info, err := os.Stat(c.MCRCONPath)
	if err != nil {
		return invalid(fmt.Errorf("MCRCON_PATH: %w", err))
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return invalid(fmt.Errorf("MCRCON_PATH: %s is not executable", c.MCRCONPath))
	}
	return nil
}

// loadAPIKey prefers OPENWEATHERMAP_API_KEY and falls back to the first
// line of OPENWEATHERMAP_API_KEY_FILE.
func loadAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv("OPENWEATHERMAP_API_KEY")); key != "" {
		return key, nil
	}
	path := os.Getenv("OPENWEATHERMAP_API_KEY_FILE")
	if path == "" {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", invalid(fmt.Errorf("OPENWEATHERMAP_API_KEY_FILE: %w", err))
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	if err := sc.Err(); err != nil {
		return "", invalid(fmt.Errorf("OPENWEATHERMAP_API_KEY_FILE: %w", err))
	}
	return "", nil
}

func parseLocation() (domain.Location, bool, error) {
	latStr, lonStr := os.Getenv("WEATHER_LAT"), os.Getenv("WEATHER_LON")
	if latStr == "" && lonStr == "" {
		return domain.Location{}, false, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Location{}, false, invalid(errors.New("invalid WEATHER_LAT"))
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.Location{}, false, invalid(errors.New("invalid WEATHER_LON"))
	}
	return domain.Location{Lat: lat, Lon: lon}, true, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, invalid(fmt.Errorf("invalid %s", key))
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, invalid(fmt.Errorf("invalid %s", key))
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
