package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memosy/internal/metrics"

	"github.com/robfig/cron/v3"
)

// Updater refreshes the downloader binary in place.
type Updater interface {
	Update(ctx context.Context) error
}

type MaintainerConfig struct {
	Schedule   string // cron spec, e.g. "@every 24h"
	RunOnStart bool
	Logger     *slog.Logger
}

// Maintainer runs the downloader self-update on a schedule. Failures are
// logged and never stop the schedule.
type Maintainer struct {
	updater    Updater
	schedule   cron.Schedule
	spec       string
	runOnStart bool
	logger     *slog.Logger
}

func NewMaintainer(u Updater, cfg MaintainerConfig) (*Maintainer, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 24h"
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse update schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Maintainer{
		updater:    u,
		schedule:   sched,
		spec:       cfg.Schedule,
		runOnStart: cfg.RunOnStart,
		logger:     cfg.Logger,
	}, nil
}

// Start blocks until ctx is cancelled.
func (m *Maintainer) Start(ctx context.Context) {
	m.logger.Info("downloader maintenance started", "schedule", m.spec)

	if m.runOnStart {
		m.RunOnce(ctx)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{m.logger})))
	c.Schedule(m.schedule, cron.FuncJob(func() { m.RunOnce(ctx) }))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("downloader maintenance stopped")
}

// RunOnce performs a single update and records the outcome.
func (m *Maintainer) RunOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	start := time.Now()
	if err := m.updater.Update(ctx); err != nil {
		metrics.UpdatesFailed.Inc()
		m.logger.Error("failed to update downloader", "err", err)
		return err
	}
	metrics.UpdatesOK.Inc()
	m.logger.Info("downloader updated", "elapsed", time.Since(start))
	return nil
}

// Next reports when the update after t is due.
func (m *Maintainer) Next(t time.Time) time.Time {
	return m.schedule.Next(t)
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
