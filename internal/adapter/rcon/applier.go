// Package rcon applies weather through a native Source RCON connection,
// without shelling out to the mcrcon binary.
package rcon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	gorcon "github.com/gorcon/rcon"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

// Options configures the RCON connection.
type Options struct {
	Host     string
	Port     int
	Password string
	Duration int // weather duration in seconds
	Timeout  time.Duration
}

type conn interface {
	Execute(command string) (string, error)
	Close() error
}

type dialFunc func(addr, password string, timeout time.Duration) (conn, error)

func dial(addr, password string, timeout time.Duration) (conn, error) {
	c, err := gorcon.Dial(addr, password,
		gorcon.SetDialTimeout(timeout),
		gorcon.SetDeadline(timeout),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Applier implements pipeline.Applier over RCON.
type Applier struct {
	opts   Options
	dial   dialFunc
	logger *slog.Logger
}

// NewApplier creates an RCON applier. A connection is opened per Apply
// call since a cycle sends a single command.
func NewApplier(opts Options, logger *slog.Logger) *Applier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Applier{opts: opts, dial: dial, logger: logger}
}

// Apply sets the server weather for state.
func (a *Applier) Apply(ctx context.Context, state domain.SyncState) error {
	command := domain.WeatherCommand(state, a.opts.Duration)
	out, err := a.Run(ctx, command)
	if err != nil {
		return err
	}
	a.logger.Info("weather command sent", "command", command, "output", out)
	return nil
}

// Run executes one console command and returns its cleaned output.
// Cancelling ctx abandons a pending dial and closes an open connection, so
// a blocked Execute returns before Timeout.
func (a *Applier) Run(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrApplyAction, err)
	}

	addr := net.JoinHostPort(a.opts.Host, strconv.Itoa(a.opts.Port))
	c, err := a.dialContext(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("%w: rcon dial %s: %w", domain.ErrApplyAction, addr, err)
	}

	var once sync.Once
	closeConn := func() {
		once.Do(func() {
			if cerr := c.Close(); cerr != nil && ctx.Err() == nil {
				a.logger.Warn("rcon close failed", "error", cerr)
			}
		})
	}
	stop := context.AfterFunc(ctx, closeConn)
	defer func() {
		stop()
		closeConn()
	}()

	out, err := c.Execute(command)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: rcon execute: %w", domain.ErrApplyAction, ctxErr)
		}
		return "", fmt.Errorf("%w: rcon execute: %w", domain.ErrApplyAction, err)
	}
	return domain.CleanConsoleOutput(out), nil
}

type dialResult struct {
	conn conn
	err  error
}

// dialContext runs the blocking dial in a goroutine. If ctx ends first, a
// connection that arrives later is closed.
func (a *Applier) dialContext(ctx context.Context, addr string) (conn, error) {
	ch := make(chan dialResult, 1)
	go func() {
		c, err := a.dial(addr, a.opts.Password, a.opts.Timeout)
		ch <- dialResult{conn: c, err: err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
