package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/weather-sync-service/internal/config"
	"github.com/couchcryptid/weather-sync-service/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK     = 0
	exitConfig = 1
	exitFetch  = 2
	exitCheck  = 3
)

type cli struct {
	EnvFile string           `name:"env-file" env:"ENV_FILE" default:".env" help:"Dotenv file loaded before reading the environment. Missing files are ignored."`
	Version kong.VersionFlag `help:"Print version and exit."`

	Sync   syncCmd   `cmd:"" default:"1" help:"Run one weather sync cycle."`
	Check  checkCmd  `cmd:"" help:"Verify the OpenWeatherMap API key without syncing."`
	Locate locateCmd `cmd:"" help:"Resolve a postal code to WEATHER_LAT and WEATHER_LON."`
}

// runtime is bound into every command's Run method.
type runtime struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("weathersync"),
		kong.Description("Sync a Minecraft server's weather with OpenWeatherMap."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, kctx, c.EnvFile, os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, kctx *kong.Context, envFile string, stdout io.Writer) int {
	if err := config.LoadEnvFile(envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		return exitConfig
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfig
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("starting", "version", version, "command", kctx.Command())

	err = kctx.Run(&runtime{ctx: ctx, cfg: cfg, logger: logger, stdout: stdout})
	return exitCode(logger, err)
}

func exitCode(logger *slog.Logger, err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		logger.Error("command failed", "error", ee.err, "exit_code", ee.code)
		return ee.code
	}
	if errors.Is(err, config.ErrInvalid) {
		logger.Error("invalid configuration", "error", err)
		return exitConfig
	}
	logger.Error("command failed", "error", err)
	return exitConfig
}
