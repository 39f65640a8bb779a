package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"paydash/internal/config"
	"paydash/internal/infrastructure"
)

// Refresher reloads the ledger on a fixed interval.
type Refresher struct {
	service  *LedgerService
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
	stop    chan struct{}

	// watchers tracks the goroutines that stop the schedule when the start
	// context ends.
	watchers sync.WaitGroup
}

// NewRefresher creates a refresher. The interval is clamped to the
// supported range.
func NewRefresher(service *LedgerService, cfg config.RefreshConfig, logger *slog.Logger) *Refresher {
	return &Refresher{
		service:  service,
		interval: cfg.ClampedInterval(),
		logger:   infrastructure.WithComponent(logger, "refresher"),
	}
}

// Interval returns the effective refresh interval.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Start schedules refreshes until Stop is called or ctx ends.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrRefresherRunning
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule ledger refresh: %w", err)
	}

	stop := make(chan struct{})
	r.cron = c
	r.entryID = id
	r.stop = stop
	c.Start()

	r.logger.Info("ledger refresher started", slog.Duration("interval", r.interval))

	r.watchers.Add(1)
	go func() {
		defer r.watchers.Done()
		select {
		case <-ctx.Done():
			r.Stop()
		case <-stop:
		}
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c, stop := r.cron, r.stop
	r.cron, r.stop = nil, nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	close(stop)
	<-c.Stop().Done()
	r.logger.Info("ledger refresher stopped")
}

// Next returns the time of the next scheduled refresh, or zero when stopped.
func (r *Refresher) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(r.entryID).Next
}

func (r *Refresher) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(infrastructure.EnsureTraceID(ctx), r.interval)
	defer cancel()

	res, err := r.service.Refresh(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "scheduled ledger refresh failed", slog.String("error", err.Error()))
		return
	}
	r.logger.DebugContext(ctx, "scheduled ledger refresh",
		slog.String("source", res.Snapshot.Source),
		slog.Bool("changed", res.Changed))
}
