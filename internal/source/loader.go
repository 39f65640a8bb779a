package source

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"paydash/internal/infrastructure"
	"paydash/internal/ledger"
)

// DefaultFetchTimeout bounds a single source attempt.
const DefaultFetchTimeout = 20 * time.Second

const loadKey = "ledger"

// Load outcomes reported in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
)

// Result is the table a load settled on.
type Result struct {
	Table       ledger.RawTable
	Source      string
	Fingerprint string
	FetchedAt   time.Time
	FromCache   bool
	Attempts    []Attempt
}

// LoaderStats describes the loader state for diagnostics.
type LoaderStats struct {
	Sources      []string   `json:"sources"`
	Cache        CacheStats `json:"cache"`
	LastSource   string     `json:"last_source,omitempty"`
	LastLoadAt   time.Time  `json:"last_load_at,omitempty"`
	LastAttempts []Attempt  `json:"last_attempts"`
}

// LoaderOptions configures a Loader. Zero values select defaults.
type LoaderOptions struct {
	Cache        *Cache
	CacheTTL     time.Duration
	FetchTimeout time.Duration
	// FetchRPS throttles remote sources. Zero disables throttling.
	FetchRPS float64
	Metrics  *infrastructure.LedgerMetrics
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

type failure struct {
	at  time.Time
	err error
}

// Loader walks an ordered list of sources until one yields records.
type Loader struct {
	sources      []Source
	cache        *Cache
	group        singleflight.Group
	limiter      *rate.Limiter
	fetchTimeout time.Duration
	metrics      *infrastructure.LedgerMetrics
	tracer       trace.Tracer
	logger       *slog.Logger
	now          func() time.Time

	mu           sync.RWMutex
	failures     map[string]failure
	lastAttempts []Attempt
	lastSource   string
	lastLoadAt   time.Time
}

// NewLoader builds a loader over sources, tried in the given order.
func NewLoader(sources []Source, opts LoaderOptions) *Loader {
	cache := opts.Cache
	if cache == nil {
		cache = NewCache(opts.CacheTTL)
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.InstrumentationName)
	}

	l := &Loader{
		sources:      sources,
		cache:        cache,
		fetchTimeout: timeout,
		metrics:      opts.Metrics,
		tracer:       tracer,
		logger:       infrastructure.WithComponent(opts.Logger, "source_loader"),
		now:          time.Now,
		failures:     make(map[string]failure),
	}

	if opts.FetchRPS > 0 {
		burst := 0
		for _, s := range sources {
			if isRemote(s) {
				burst++
			}
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.FetchRPS), max(burst, 1))
	}

	return l
}

// Sources returns the configured source names in order.
func (l *Loader) Sources() []string {
	names := make([]string, len(l.sources))
	for i, s := range l.sources {
		names[i] = s.Name()
	}
	return names
}

// Load returns the first fresh cached table or fetches one. Concurrent
// calls share a single walk of the chain. A caller whose context ends stops
// waiting without cancelling the shared walk.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	ch := l.group.DoChan(loadKey, func() (any, error) {
		return l.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (l *Loader) load(ctx context.Context) (*Result, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.load",
		trace.WithAttributes(attribute.Int("ledger.sources", len(l.sources))))
	defer span.End()

	if len(l.sources) == 0 {
		err := fmt.Errorf("%w: no sources configured", ErrAllSourcesFailed)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	attempts := make([]Attempt, 0, len(l.sources))
	var errs []error

	for _, src := range l.sources {
		name := src.Name()

		if entry, ok := l.cache.Get(name); ok {
			l.metrics.RecordCache(ctx, true)
			l.metrics.RecordLoad(ctx, name, OutcomeCached, 0)
			attempts = append(attempts, Attempt{Source: name, At: l.now(), Rows: entry.Rows, FromCache: true})
			l.remember(name, attempts)
			span.SetAttributes(attribute.String("ledger.source", name), attribute.Bool("ledger.cached", true))
			return &Result{
				Table:       entry.Table,
				Source:      name,
				Fingerprint: entry.Fingerprint,
				FetchedAt:   entry.CachedAt,
				FromCache:   true,
				Attempts:    attempts,
			}, nil
		}
		l.metrics.RecordCache(ctx, false)

		if f, ok := l.recentFailure(name); ok {
			attempts = append(attempts, Attempt{Source: name, At: l.now(), FromCache: true, Err: f.err})
			errs = append(errs, f.err)
			continue
		}

		table, attempt := l.fetch(ctx, src)
		attempts = append(attempts, attempt)
		if attempt.Err != nil {
			l.recordFailure(name, attempt.Err)
			errs = append(errs, attempt.Err)
			continue
		}

		entry := l.cache.Set(name, table, Fingerprint(table))
		l.remember(name, attempts)
		span.SetAttributes(attribute.String("ledger.source", name), attribute.Int("ledger.rows", entry.Rows))
		l.logger.InfoContext(ctx, "ledger loaded",
			slog.String("source", name),
			slog.Int("rows", entry.Rows),
			slog.String("fingerprint", entry.Fingerprint[:12]),
			slog.Int("attempts", len(attempts)))

		return &Result{
			Table:       table,
			Source:      name,
			Fingerprint: entry.Fingerprint,
			FetchedAt:   entry.CachedAt,
			Attempts:    attempts,
		}, nil
	}

	l.remember("", attempts)
	err := fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "all sources failed")
	l.logger.ErrorContext(ctx, "all ledger sources failed",
		slog.Int("attempts", len(attempts)),
		slog.String("error", err.Error()))
	return nil, err
}

// fetch makes one timed, throttled attempt against src.
func (l *Loader) fetch(ctx context.Context, src Source) (ledger.RawTable, Attempt) {
	name := src.Name()
	attempt := Attempt{Source: name, At: l.now()}

	ctx, span := l.tracer.Start(ctx, "ledger.source.fetch",
		trace.WithAttributes(attribute.String("ledger.source", name)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	defer cancel()

	start := time.Now()
	var (
		table ledger.RawTable
		err   error
	)
	if isRemote(src) && l.limiter != nil {
		err = l.limiter.Wait(ctx)
	}
	if err == nil {
		table, err = src.Fetch(ctx)
	}
	if err == nil && table.Len() == 0 {
		err = fmt.Errorf("%s: %w", name, ErrEmptySource)
	}
	attempt.Duration = time.Since(start)

	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrEmptySource):
		outcome = OutcomeEmpty
	case err != nil:
		outcome = OutcomeFailure
	}
	l.metrics.RecordLoad(ctx, name, outcome, attempt.Duration)

	if err != nil {
		attempt.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		l.logger.WarnContext(ctx, "ledger source failed",
			slog.String("source", name),
			slog.String("outcome", outcome),
			slog.Duration("duration", attempt.Duration),
			slog.String("error", err.Error()))
		return ledger.RawTable{Source: name}, attempt
	}

	if table.Source == "" {
		table.Source = name
	}
	attempt.Rows = table.Len()
	span.SetAttributes(attribute.Int("ledger.rows", attempt.Rows))
	return table, attempt
}

// Probe tries every source once, bypassing the cache and the failure memo.
func (l *Loader) Probe(ctx context.Context) []Attempt {
	attempts := make([]Attempt, 0, len(l.sources))
	for _, src := range l.sources {
		_, attempt := l.fetch(ctx, src)
		attempts = append(attempts, attempt)
	}
	return attempts
}

// Invalidate drops every cached table and remembered failure.
func (l *Loader) Invalidate() {
	l.cache.InvalidateAll()

	l.mu.Lock()
	l.failures = make(map[string]failure)
	l.mu.Unlock()
}

// Stats returns cache counters and the attempts of the last load.
func (l *Loader) Stats() LoaderStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LoaderStats{
		Sources:      l.Sources(),
		Cache:        l.cache.Stats(),
		LastSource:   l.lastSource,
		LastLoadAt:   l.lastLoadAt,
		LastAttempts: append([]Attempt(nil), l.lastAttempts...),
	}
}

// Close stops the cache cleanup goroutine.
func (l *Loader) Close() {
	l.cache.Stop()
}

// A failed source is not retried until the cache TTL has passed, mirroring
// how a cached table is not refetched.
func (l *Loader) recentFailure(name string) (failure, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.failures[name]
	if !ok || l.now().Sub(f.at) > l.cache.TTL() {
		return failure{}, false
	}
	return f, true
}

func (l *Loader) recordFailure(name string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[name] = failure{at: l.now(), err: err}
}

func (l *Loader) remember(source string, attempts []Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAttempts = append([]Attempt(nil), attempts...)
	if source != "" {
		l.lastSource = source
		l.lastLoadAt = l.now()
		delete(l.failures, source)
	}
}

// Fingerprint hashes the header and cells of a table with BLAKE2b-256.
// Equal content from different sources hashes the same.
func Fingerprint(table ledger.RawTable) string {
	h, _ := blake2b.New256(nil)
	for _, col := range table.Columns {
		fmt.Fprintf(h, "%s\x1f", col)
	}
	h.Write([]byte{0x1e})
	for _, rec := range table.Records {
		for _, col := range table.Columns {
			fmt.Fprintf(h, "%v\x1f", rec[col])
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}
