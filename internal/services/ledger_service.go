package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	apierrors "paydash/internal/errors"
	"paydash/internal/exporter"
	"paydash/internal/infrastructure"
	"paydash/internal/ledger"
	"paydash/internal/report"
	"paydash/internal/source"
)

// MessageLedgerRefreshed is broadcast when a refresh changes the ledger.
const MessageLedgerRefreshed = "ledger:refreshed"

// LedgerLoader is the part of source.Loader the service depends on.
type LedgerLoader interface {
	Load(ctx context.Context) (*source.Result, error)
	Invalidate()
	Stats() source.LoaderStats
	Probe(ctx context.Context) []source.Attempt
}

// WebSocketHub receives refresh notifications.
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// Snapshot is one normalized version of the ledger.
type Snapshot struct {
	Table       *ledger.NormalizedTable `json:"-"`
	Source      string                  `json:"source"`
	Rows        int                     `json:"rows"`
	Fingerprint string                  `json:"fingerprint"`
	FetchedAt   time.Time               `json:"fetched_at"`
	FromCache   bool                    `json:"from_cache"`
}

// RefreshEvent is the payload of MessageLedgerRefreshed.
type RefreshEvent struct {
	Source      string    `json:"source"`
	Rows        int       `json:"rows"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

// RefreshResult reports the outcome of a forced reload.
type RefreshResult struct {
	Snapshot *Snapshot `json:"snapshot"`
	Changed  bool      `json:"changed"`
}

// LedgerService loads, normalizes, summarizes and exports the ledger.
type LedgerService struct {
	loader   LedgerLoader
	exporter *exporter.CSVWriter
	hub      WebSocketHub
	metrics  *infrastructure.LedgerMetrics
	logger   *slog.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewLedgerService creates a ledger service. hub and metrics may be nil.
func NewLedgerService(loader LedgerLoader, csv *exporter.CSVWriter, hub WebSocketHub, metrics *infrastructure.LedgerMetrics, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		loader:   loader,
		exporter: csv,
		hub:      hub,
		metrics:  metrics,
		logger:   infrastructure.WithComponent(logger, "ledger_service"),
	}
}

// Current returns the normalized ledger, from the source cache when fresh.
// A table whose fingerprint has not changed is not normalized again.
func (s *LedgerService) Current(ctx context.Context) (*Snapshot, error) {
	res, err := s.loader.Load(ctx)
	if err != nil {
		return nil, s.loadError(err)
	}

	s.mu.RLock()
	prev := s.current
	s.mu.RUnlock()

	if prev != nil && prev.Fingerprint == res.Fingerprint && prev.Source == res.Source {
		snap := *prev
		snap.FetchedAt = res.FetchedAt
		snap.FromCache = res.FromCache
		return &snap, nil
	}

	table, err := ledger.Process(res.Table)
	if err != nil {
		if errors.Is(err, ledger.ErrNoData) {
			return nil, apierrors.NewNoDataError("ledger has no records", err).
				WithContext("source", res.Source)
		}
		return nil, err
	}

	kinds := make([]string, len(table.Advisories))
	for i, a := range table.Advisories {
		kinds[i] = string(a.Kind)
		s.logger.WarnContext(ctx, "ledger advisory",
			slog.String("kind", string(a.Kind)),
			slog.String("column", a.Column),
			slog.String("message", a.Message))
	}
	s.metrics.RecordNormalized(ctx, table.Len(), kinds)

	snap := &Snapshot{
		Table:       table,
		Source:      res.Source,
		Rows:        table.Len(),
		Fingerprint: res.Fingerprint,
		FetchedAt:   res.FetchedAt,
		FromCache:   res.FromCache,
	}

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "ledger normalized",
		slog.String("source", snap.Source),
		slog.Int("rows", snap.Rows),
		slog.Int("advisories", len(table.Advisories)))

	return snap, nil
}

// Refresh drops cached tables and reloads. Subscribers are notified only
// when the content changed.
func (s *LedgerService) Refresh(ctx context.Context) (*RefreshResult, error) {
	s.mu.RLock()
	var prevFingerprint string
	if s.current != nil {
		prevFingerprint = s.current.Fingerprint
	}
	s.mu.RUnlock()

	s.loader.Invalidate()

	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	changed := snap.Fingerprint != prevFingerprint
	if changed && s.hub != nil {
		s.hub.Broadcast(MessageLedgerRefreshed, RefreshEvent{
			Source:      snap.Source,
			Rows:        snap.Rows,
			Fingerprint: snap.Fingerprint,
			Timestamp:   snap.FetchedAt,
		})
	}

	s.logger.InfoContext(ctx, "ledger refreshed",
		slog.String("source", snap.Source),
		slog.Bool("changed", changed))

	return &RefreshResult{Snapshot: snap, Changed: changed}, nil
}

// Records returns the rows matching filter.
func (s *LedgerService) Records(ctx context.Context, filter report.Filter) (*ledger.NormalizedTable, error) {
	if err := filter.Validate(); err != nil {
		return nil, apierrors.NewAppValidationError(err.Error())
	}
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(snap.Table), nil
}

// Summary aggregates the rows matching filter. The filter options and the
// final amount range always describe the whole ledger so they can seed the
// filter controls.
func (s *LedgerService) Summary(ctx context.Context, filter report.Filter) (*report.Summary, error) {
	if err := filter.Validate(); err != nil {
		return nil, apierrors.NewAppValidationError(err.Error())
	}
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	summary := report.Summarize(filter.Apply(snap.Table))
	summary.FinalRange = report.FinalRange(snap.Table)
	summary.Options = report.FilterOptions(snap.Table)
	return &summary, nil
}

// Export writes the rows matching filter to w as CSV.
func (s *LedgerService) Export(ctx context.Context, w io.Writer, filter report.Filter) error {
	table, err := s.Records(ctx, filter)
	if err != nil {
		return err
	}
	return s.exporter.Write(w, table)
}

// ExportFile writes the rows matching filter under the export directory and
// returns the path written.
func (s *LedgerService) ExportFile(ctx context.Context, name string, filter report.Filter) (string, error) {
	table, err := s.Records(ctx, filter)
	if err != nil {
		return "", err
	}
	return s.exporter.WriteFile(name, table)
}

// ExportFileName is the suggested download name.
func (s *LedgerService) ExportFileName() string {
	return s.exporter.FileName()
}

// Sources reports cache state and the attempts of the last load.
func (s *LedgerService) Sources() source.LoaderStats {
	return s.loader.Stats()
}

// Probe tries each configured source once, ignoring caches.
func (s *LedgerService) Probe(ctx context.Context) []source.Attempt {
	return s.loader.Probe(ctx)
}

// LastSnapshot returns the most recent snapshot without loading, or nil.
func (s *LedgerService) LastSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	snap := *s.current
	return &snap
}

func (s *LedgerService) loadError(err error) error {
	if !errors.Is(err, source.ErrAllSourcesFailed) {
		return err
	}
	stats := s.loader.Stats()
	failed := make([]string, 0, len(stats.LastAttempts))
	for _, a := range stats.LastAttempts {
		if !a.OK() {
			failed = append(failed, a.Source)
		}
	}
	return apierrors.NewSourceError("all ledger sources failed", err).
		WithContext("failed_sources", failed)
}
