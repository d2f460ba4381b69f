package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-sync-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-sync-service/internal/adapter/mcrcon"
	"github.com/couchcryptid/weather-sync-service/internal/adapter/openweather"
	"github.com/couchcryptid/weather-sync-service/internal/adapter/rcon"
	"github.com/couchcryptid/weather-sync-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-sync-service/internal/adapter/statefile"
	"github.com/couchcryptid/weather-sync-service/internal/config"
	"github.com/couchcryptid/weather-sync-service/internal/domain"
	"github.com/couchcryptid/weather-sync-service/internal/observability"
	"github.com/couchcryptid/weather-sync-service/internal/pipeline"
)

type syncCmd struct{}

// Run performs one cycle. Only a fetch failure changes the exit code; the
// other failure outcomes are logged and retried by the next invocation.
func (syncCmd) Run(rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger
	if err := cfg.ValidateSync(); err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	store, closeStore, err := newStateStore(rt.ctx, cfg, logger)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	opts := pipeline.Options{
		Location:              cfg.Location,
		PersistOnApplyFailure: cfg.PersistOnApplyFailure,
	}
	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg, logger)
		opts.Publisher = publisher
	}

	p := pipeline.New(newFetcher(cfg, logger), store, newApplier(cfg, logger), logger, metrics, opts)
	res := p.RunCycle(rt.ctx)

	flush(cfg, metrics, publisher, logger)

	if res.Outcome == domain.OutcomeFetchFailed {
		return &exitError{code: exitFetch, err: res.FetchErr}
	}
	return nil
}

type checkCmd struct{}

// Run issues a HEAD request with the configured key and location.
func (checkCmd) Run(rt *runtime) error {
	if err := rt.cfg.ValidateFetch(); err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if err := newFetcher(rt.cfg, rt.logger).CheckCredentials(rt.ctx, rt.cfg.Location); err != nil {
		return &exitError{code: exitCheck, err: err}
	}
	rt.logger.Info("api key valid", "location", rt.cfg.Location.String())
	fmt.Fprintln(rt.stdout, "OK: OpenWeatherMap API key is valid")
	return nil
}

type locateCmd struct {
	Zip     string `required:"" help:"Postal code to resolve."`
	Country string `default:"US" help:"ISO 3166 country code."`
}

// Run prints the coordinates in dotenv form so they can be appended to .env.
func (l locateCmd) Run(rt *runtime) error {
	if err := rt.cfg.ValidateAPIKey(); err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	var locator domain.Locator = newFetcher(rt.cfg, rt.logger)
	zl, err := locator.LocateZip(rt.ctx, l.Zip, l.Country)
	if err != nil {
		return &exitError{code: exitFetch, err: err}
	}
	rt.logger.Info("postal code located", "zip", l.Zip, "name", zl.Name, "country", zl.Country)
	fmt.Fprintf(rt.stdout, "# %s, %s\nWEATHER_LAT=%g\nWEATHER_LON=%g\n", zl.Name, zl.Country, zl.Lat, zl.Lon)
	return nil
}

func newFetcher(cfg *config.Config, logger *slog.Logger) *openweather.Client {
	return openweather.NewClient(cfg.APIKey, openweather.Options{
		BaseURL: cfg.BaseURL,
		Version: cfg.APIVersion,
		Exclude: cfg.Exclude,
		Timeout: cfg.Timeout,
	}, logger)
}

func newStateStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.StateStore, func(), error) {
	if cfg.StateBackend != config.StateBackendSQLite {
		return statefile.New(cfg.StatePath, logger), func() {}, nil
	}
	s, err := sqlite.Open(ctx, cfg.StatePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("close state database failed", "error", err)
		}
	}, nil
}

func newApplier(cfg *config.Config, logger *slog.Logger) pipeline.Applier {
	if cfg.ApplyMode == config.ApplyModeRCON {
		return rcon.NewApplier(rcon.Options{
			Host:     cfg.RCONHost,
			Port:     cfg.RCONPort,
			Password: cfg.RCONPassword,
			Duration: cfg.WeatherDuration,
			Timeout:  cfg.ApplyTimeout,
		}, logger)
	}
	return mcrcon.NewApplier(mcrcon.Options{
		Path:     cfg.MCRCONPath,
		Host:     cfg.RCONHost,
		Port:     cfg.RCONPort,
		Password: cfg.RCONPassword,
		Duration: cfg.WeatherDuration,
		Timeout:  cfg.ApplyTimeout,
	}, logger)
}

// flush pushes metrics and closes the event publisher, bounded by
// SHUTDOWN_TIMEOUT. It runs on a fresh context so a cancelled cycle still
// reports.
func flush(cfg *config.Config, metrics *observability.Metrics, publisher *kafka.Publisher, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if cfg.PushgatewayURL != "" {
		pusher := observability.NewPusher(cfg.PushgatewayURL, metrics, cfg.Location.String(), logger)
		if err := pusher.Push(ctx); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("kafka publisher close error", "error", err)
		}
	}
}
