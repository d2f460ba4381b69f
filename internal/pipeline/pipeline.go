package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
	"github.com/couchcryptid/weather-sync-service/internal/observability"
)

// Fetcher retrieves the current observation for a location.
type Fetcher interface {
	Fetch(ctx context.Context, loc domain.Location) (domain.RawObservation, error)
}

// StateStore reads and durably overwrites the single persisted state slot.
// Read returns ok=false when no cycle has ever persisted a state.
type StateStore interface {
	Read(ctx context.Context) (state domain.SyncState, ok bool, err error)
	Write(ctx context.Context, state domain.SyncState) error
}

// Applier sets the remote server's weather.
type Applier interface {
	Apply(ctx context.Context, state domain.SyncState) error
}

// Publisher receives one event per cycle. Optional.
type Publisher interface {
	Publish(ctx context.Context, ev domain.CycleEvent) error
}

// Options tunes controller behavior.
type Options struct {
	Location domain.Location

	// PersistOnApplyFailure keeps the optimistic behavior of writing the
	// classified state even when the apply action failed.
	PersistOnApplyFailure bool

	Publisher Publisher
	Clock     clockwork.Clock
}

// Pipeline runs fetch, classify, compare, apply and persist as a single pass.
type Pipeline struct {
	fetcher   Fetcher
	store     StateStore
	applier   Applier
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	opts      Options
}

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, s StateStore, a Applier, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:   f,
		store:     s,
		applier:   a,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clk,
		opts:      opts,
	}
}

// RunCycle performs one cycle. It never retries; a failed fetch ends the
// cycle before the state slot is read or written.
func (p *Pipeline) RunCycle(ctx context.Context) domain.CycleResult {
	res := domain.CycleResult{
		ID:        uuid.NewString(),
		Location:  p.opts.Location,
		StartedAt: p.clock.Now().UTC(),
	}
	log := p.logger.With("cycle_id", res.ID, "location", res.Location.String())

	p.run(ctx, log, &res)

	res.FinishedAt = p.clock.Now().UTC()
	res.Outcome = outcomeOf(res)
	p.record(res)
	p.logOutcome(log, res)
	p.publish(ctx, log, res)
	return res
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, res *domain.CycleResult) {
	fetchStart := p.clock.Now()
	obs, err := p.fetcher.Fetch(ctx, res.Location)
	p.metrics.FetchDuration.Observe(p.clock.Since(fetchStart).Seconds())
	if err != nil {
		res.FetchErr = err
		p.logFetchError(log, err)
		return
	}
	res.Observation = obs
	res.State = domain.Classify(obs)
	log.Debug("observation classified", "observation", string(obs), "state", res.State)

	prev, ok, err := p.store.Read(ctx)
	if err != nil {
		log.Warn("read persisted state failed, treating as absent", "error", err)
		prev, ok = "", false
	}
	res.Previous, res.HadPrevious = prev, ok

	if ok && prev == res.State {
		log.Info("weather already current, skipping apply", "state", res.State)
		p.persist(ctx, log, res)
		return
	}

	res.Applied = true
	if err := p.applier.Apply(ctx, res.State); err != nil {
		res.ApplyErr = err
		p.metrics.ApplyActions.WithLabelValues(res.State.ApplyAction(), "error").Inc()
		log.Error("apply weather failed", "error", err, "state", res.State)
		if !p.opts.PersistOnApplyFailure {
			log.Warn("state not persisted, next cycle will retry the apply", "state", res.State)
			return
		}
	} else {
		p.metrics.ApplyActions.WithLabelValues(res.State.ApplyAction(), "success").Inc()
	}

	p.persist(ctx, log, res)
}

func (p *Pipeline) persist(ctx context.Context, log *slog.Logger, res *domain.CycleResult) {
	if err := p.store.Write(ctx, res.State); err != nil {
		res.PersistErr = err
		log.Error("persist state failed", "error", err, "state", res.State)
		return
	}
	res.Persisted = true
}

func (p *Pipeline) logFetchError(log *slog.Logger, err error) {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		p.metrics.FetchErrors.WithLabelValues(domain.FetchTransport.String()).Inc()
		log.Error("fetch observation failed", "error", err)
		return
	}
	p.metrics.FetchErrors.WithLabelValues(fe.Kind.String()).Inc()
	attrs := []any{"error", err, "kind", fe.Kind.String()}
	if fe.Kind == domain.FetchAPIStatus {
		attrs = append(attrs, "status", fe.StatusCode, "body", fe.Body)
	}
	log.Error("fetch observation failed", attrs...)
}

// outcomeOf applies the outcome precedence: a failed fetch wins over a
// failed persist, which wins over an unknown classification.
func outcomeOf(res domain.CycleResult) domain.Outcome {
	switch {
	case res.FetchErr != nil:
		return domain.OutcomeFetchFailed
	case res.PersistErr != nil:
		return domain.OutcomePersistFailed
	case res.State == domain.StateUnknown:
		return domain.OutcomeClassifyUnknown
	case !res.Applied:
		return domain.OutcomeSkippedAlreadyCurrent
	default:
		return domain.OutcomeApplied
	}
}

func (p *Pipeline) record(res domain.CycleResult) {
	p.metrics.CyclesTotal.WithLabelValues(string(res.Outcome)).Inc()
	p.metrics.CycleDuration.Observe(res.Duration().Seconds())
	if res.FetchErr != nil {
		return
	}
	for _, s := range []domain.SyncState{domain.StateClear, domain.StateRain, domain.StateUnknown} {
		v := 0.0
		if s == res.State {
			v = 1
		}
		p.metrics.CurrentState.WithLabelValues(string(s)).Set(v)
	}
	p.metrics.LastSuccessSeconds.Set(float64(res.FinishedAt.Unix()))
}

func (p *Pipeline) logOutcome(log *slog.Logger, res domain.CycleResult) {
	attrs := []any{
		"outcome", res.Outcome,
		"state", res.State,
		"applied", res.Applied,
		"persisted", res.Persisted,
		"duration", res.Duration().Round(time.Millisecond),
	}
	if res.ApplyErr != nil {
		attrs = append(attrs, "apply_error", res.ApplyErr)
	}
	switch res.Outcome {
	case domain.OutcomeFetchFailed, domain.OutcomePersistFailed:
		log.Error("cycle finished", attrs...)
	case domain.OutcomeClassifyUnknown:
		log.Warn("cycle finished", append(attrs, "observation", string(res.Observation))...)
	default:
		if res.ApplyErr != nil {
			log.Warn("cycle finished", attrs...)
			return
		}
		log.Info("cycle finished", attrs...)
	}
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, res domain.CycleResult) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, domain.NewCycleEvent(res)); err != nil {
		log.Warn("publish cycle event failed", "error", err)
	}
}
