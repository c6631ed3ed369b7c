package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is the cadence of the expiry sweep.
const DefaultSweepInterval = 30 * time.Second

// Sweeper runs SeatService.SweepExpired on a fixed cadence.  Runs never
// overlap: a sweep still in progress causes the next tick to be skipped.
type Sweeper struct {
	svc      *SeatService
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper returns a sweeper for svc.
func NewSweeper(svc *SeatService, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{svc: svc, interval: interval, log: logger.With("component", "sweeper")}
}

// Run schedules the sweep and blocks until ctx is done, then waits for a
// running sweep to finish.
func (w *Sweeper) Run(ctx context.Context) error {
	cl := cronLogger{w.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), func() { w.sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.Start()
	w.log.Info("sweeper started", "interval", w.interval)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.svc.SweepExpired(ctx)
	if err != nil {
		w.log.Error("sweep failed", "err", err)
		return
	}
	if n > 0 {
		w.log.Debug("sweep done", "released", n)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
