package mcrcon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

// Options configures the mcrcon executable invocation.
type Options struct {
	Path     string
	Host     string
	Port     int
	Password string
	Duration int // weather duration in seconds
	Timeout  time.Duration
}

// Applier implements pipeline.Applier by running the mcrcon binary.
type Applier struct {
	opts   Options
	logger *slog.Logger
}

// NewApplier creates an exec-based applier.
func NewApplier(opts Options, logger *slog.Logger) *Applier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Applier{opts: opts, logger: logger}
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

// Run executes one console command and returns its cleaned output. The
// password is passed through MCRCON_PASS so it does not show up in the
// process list.
func (a *Applier) Run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.opts.Path,
		"-H", a.opts.Host,
		"-P", strconv.Itoa(a.opts.Port),
		command,
	)
	cmd.Env = append(os.Environ(), "MCRCON_PASS="+a.opts.Password)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := domain.CleanConsoleOutput(stdout.String())
	if err == nil {
		return out, nil
	}

	detail := strings.TrimSpace(domain.CleanConsoleOutput(stderr.String()))
	if detail == "" {
		detail = out
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return out, fmt.Errorf("%w: mcrcon exited with status %d: %s", domain.ErrApplyAction, exitErr.ExitCode(), detail)
	}
	return out, fmt.Errorf("%w: mcrcon: %w", domain.ErrApplyAction, err)
}
