package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	ledger    *LedgerService
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// LedgerHealth describes the last load
type LedgerHealth struct {
	Status      string    `json:"status"`
	Source      string    `json:"source,omitempty"`
	Rows        int       `json:"rows"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// NewHealthService creates a new health service. hub may be nil.
func NewHealthService(version string, ledger *LedgerService, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		ledger:    ledger,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// LivenessCheck reports process liveness and the last ledger load. It never
// triggers a load.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]interface{}{
			"ledger":    hs.ledgerHealth(),
			"websocket": hs.websocketHealth(),
		},
	}

	hs.logger.DebugContext(ctx, "liveness check", slog.String("status", status.Status))
	return status
}

// ReadinessCheck loads the ledger and reports whether it could be served.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	lh := LedgerHealth{Status: "ready"}
	if hs.ledger == nil {
		lh.Status = "unavailable"
		status.Status = "not_ready"
	} else if snap, err := hs.ledger.Current(ctx); err != nil {
		lh.Status = "not_ready"
		lh.LastError = err.Error()
		status.Status = "not_ready"
	} else {
		lh.Source = snap.Source
		lh.Rows = snap.Rows
		lh.Fingerprint = snap.Fingerprint
		lh.FetchedAt = snap.FetchedAt
	}
	status.Services["ledger"] = lh
	status.Services["websocket"] = hs.websocketHealth()

	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

func (hs *HealthService) ledgerHealth() LedgerHealth {
	if hs.ledger == nil {
		return LedgerHealth{Status: "unavailable"}
	}
	snap := hs.ledger.LastSnapshot()
	if snap == nil {
		lh := LedgerHealth{Status: "not_loaded"}
		for _, a := range hs.ledger.Sources().LastAttempts {
			if a.Err != nil {
				lh.LastError = a.Err.Error()
			}
		}
		return lh
	}
	return LedgerHealth{
		Status:      "loaded",
		Source:      snap.Source,
		Rows:        snap.Rows,
		Fingerprint: snap.Fingerprint,
		FetchedAt:   snap.FetchedAt,
	}
}

func (hs *HealthService) websocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "disabled"}
	}
	return ServiceHealth{Status: "ready", Message: pluralClients(hs.hub.ClientCount())}
}

func pluralClients(n int) string {
	if n == 1 {
		return "1 client connected"
	}
	return strconv.Itoa(n) + " clients connected"
}
