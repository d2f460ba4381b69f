package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher sends cycle metrics to a Prometheus Pushgateway. Batch jobs do not
// live long enough to be scraped.
type Pusher struct {
	pusher *push.Pusher
	logger *slog.Logger
}

// NewPusher creates a Pusher for the given gateway URL, grouping series by
// the monitored location.
func NewPusher(url string, m *Metrics, location string, logger *slog.Logger) *Pusher {
	p := push.New(url, "weathersync").
		Gatherer(m.Registry).
		Grouping("location", location)
	return &Pusher{pusher: p, logger: logger}
}

// Push replaces the job's series on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	p.logger.Debug("metrics pushed")
	return nil
}
