package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apierrors "paydash/internal/errors"
	"paydash/internal/infrastructure"
	"paydash/internal/ledger"
	"paydash/internal/report"
	"paydash/internal/services"
	"paydash/internal/source"
)

// LedgerServiceInterface is the part of services.LedgerService the handler uses.
type LedgerServiceInterface interface {
	Records(ctx context.Context, filter report.Filter) (*ledger.NormalizedTable, error)
	Summary(ctx context.Context, filter report.Filter) (*report.Summary, error)
	Export(ctx context.Context, w io.Writer, filter report.Filter) error
	ExportFileName() string
	Refresh(ctx context.Context) (*services.RefreshResult, error)
	Sources() source.LoaderStats
	Probe(ctx context.Context) []source.Attempt
}

// LedgerResponse is the body of GET /api/ledger.
type LedgerResponse struct {
	Source     string            `json:"source"`
	Rows       int               `json:"rows"`
	Fields     ledger.FieldSet   `json:"fields"`
	Advisories []ledger.Advisory `json:"advisories"`
	Filter     filterQuery       `json:"filter"`
	Records    []ledger.Record   `json:"records"`
}

// filterQuery holds the raw filter parameters of a request.
type filterQuery struct {
	Statuses []string `json:"status,omitempty" validate:"dive,max=200"`
	Modes    []string `json:"mode,omitempty" validate:"dive,max=200"`
	MinFinal string   `json:"min_final,omitempty" validate:"omitempty,numeric"`
	MaxFinal string   `json:"max_final,omitempty" validate:"omitempty,numeric"`
}

// LedgerHandler serves the ledger, its summary and CSV downloads.
type LedgerHandler struct {
	service      LedgerServiceInterface
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewLedgerHandler creates a ledger handler
func NewLedgerHandler(service LedgerServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *LedgerHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return &LedgerHandler{
		service:      service,
		validate:     validate,
		logger:       infrastructure.WithComponent(logger, "ledger_handler"),
		errorHandler: errorHandler,
	}
}

// Routes mounts under /api/ledger
func (h *LedgerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetLedger)
	r.Get("/summary", h.GetSummary)
	r.Get("/export.csv", h.ExportCSV)
	r.Post("/refresh", h.Refresh)
	return r
}

// SourceRoutes mounts under /api/sources
func (h *LedgerHandler) SourceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetSources)
	r.Post("/probe", h.ProbeSources)
	return r
}

// GetLedger handles GET /api/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	q, filter, err := h.parseFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	table, err := h.service.Records(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	records := table.Records
	if records == nil {
		records = []ledger.Record{}
	}
	render.JSON(w, r, LedgerResponse{
		Source:     table.Source,
		Rows:       table.Len(),
		Fields:     table.Fields,
		Advisories: table.Advisories,
		Filter:     q,
		Records:    records,
	})
}

// GetSummary handles GET /api/ledger/summary
func (h *LedgerHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	_, filter, err := h.parseFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// ExportCSV handles GET /api/ledger/export.csv
func (h *LedgerHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	_, filter, err := h.parseFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Buffer so a failed load still yields a problem document.
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, filter); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.service.ExportFileName()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "csv download interrupted",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	}
}

// Refresh handles POST /api/ledger/refresh
func (h *LedgerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.service.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ledger refresh requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("source", res.Snapshot.Source),
		slog.Bool("changed", res.Changed),
		slog.Duration("duration", time.Since(start)))
	render.JSON(w, r, res)
}

// GetSources handles GET /api/sources
func (h *LedgerHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Sources())
}

// ProbeSources handles POST /api/sources/probe
func (h *LedgerHandler) ProbeSources(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"attempts": h.service.Probe(r.Context()),
	})
}

// parseFilter reads status, mode, min_final and max_final from the query.
func (h *LedgerHandler) parseFilter(r *http.Request) (filterQuery, report.Filter, error) {
	values := r.URL.Query()
	q := filterQuery{
		Statuses: values["status"],
		Modes:    values["mode"],
		MinFinal: values.Get("min_final"),
		MaxFinal: values.Get("max_final"),
	}
	if err := h.validate.Struct(q); err != nil {
		return q, report.Filter{}, err
	}

	filter := report.Filter{Statuses: q.Statuses, Modes: q.Modes}
	if q.MinFinal != "" {
		d, err := decimal.NewFromString(q.MinFinal)
		if err != nil {
			return q, report.Filter{}, apierrors.ErrValidation("min_final", err.Error())
		}
		filter.MinFinal = &d
	}
	if q.MaxFinal != "" {
		d, err := decimal.NewFromString(q.MaxFinal)
		if err != nil {
			return q, report.Filter{}, apierrors.ErrValidation("max_final", err.Error())
		}
		filter.MaxFinal = &d
	}
	if err := filter.Validate(); err != nil {
		return q, report.Filter{}, apierrors.ErrValidation("max_final", err.Error())
	}
	return q, filter, nil
}
