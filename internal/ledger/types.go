package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names.
const (
	FieldUnitName        = "unit_name"
	FieldWorkOrderNo     = "work_order_no"
	FieldOrderAmount     = "order_amount"
	FieldFinalAmount     = "final_amount"
	FieldPaymentReceived = "payment_received"
	FieldPendingAmount   = "pending_amount"
	FieldPaymentMode     = "payment_mode"
	FieldWorkStatus      = "work_status"
	FieldPDate           = "p_date"
	FieldPaymentDate     = "payment_date"
	FieldYear            = "year"
)

const (
	// DefaultWorkStatus replaces absent or blank status cells.
	DefaultWorkStatus = "Unknown"
	// DefaultYear is used whenever no payment date can be derived.
	DefaultYear = 2024
)

// MonetaryFields are always present after mapping.
var MonetaryFields = []string{
	FieldOrderAmount,
	FieldFinalAmount,
	FieldPaymentReceived,
	FieldPendingAmount,
}

// DisplayColumns is the column order used by exports and listings.
var DisplayColumns = []string{
	FieldUnitName,
	FieldWorkOrderNo,
	FieldOrderAmount,
	FieldFinalAmount,
	FieldPaymentReceived,
	FieldPendingAmount,
	FieldPaymentMode,
	FieldWorkStatus,
	FieldPDate,
	FieldPaymentDate,
	FieldYear,
}

// ErrNoData is returned when a table has no records to normalize.
var ErrNoData = errors.New("ledger: no data")

// RawRecord is one untrusted row keyed by the header text as received.
type RawRecord map[string]any

// RawTable is a table as produced by a source. Columns keeps the header
// order because collision handling depends on it.
type RawTable struct {
	Columns []string
	Records []RawRecord
	Source  string
}

// Len returns the number of records.
func (t RawTable) Len() int {
	return len(t.Records)
}

// AdvisoryKind classifies a recovered, non-fatal condition.
type AdvisoryKind string

const (
	AdvisoryMissingColumn   AdvisoryKind = "missing_column"
	AdvisoryHeaderCollision AdvisoryKind = "header_collision"
)

// Advisory is a notice attached to a result for visibility only.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Column  string       `json:"column"`
	Message string       `json:"message"`
}

// Optional marks a value whose column may be absent from the source.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// MarshalJSON encodes an absent value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// FieldSet records which optional canonical columns were present.
type FieldSet map[string]bool

// Has reports whether the named column was present in the source.
func (f FieldSet) Has(field string) bool {
	return f[field]
}

// Record is one normalized ledger row.
type Record struct {
	UnitName        Optional[string] `json:"unit_name"`
	WorkOrderNo     Optional[string] `json:"work_order_no"`
	OrderAmount     decimal.Decimal  `json:"order_amount"`
	FinalAmount     decimal.Decimal  `json:"final_amount"`
	PaymentReceived decimal.Decimal  `json:"payment_received"`
	PendingAmount   decimal.Decimal  `json:"pending_amount"`
	PaymentMode     Optional[string] `json:"payment_mode"`
	WorkStatus      string           `json:"work_status"`
	PDate           Optional[string] `json:"p_date"`
	PaymentDate     *time.Time       `json:"payment_date"`
	Year            int              `json:"year"`
}

// NormalizedTable is the output of the pipeline. Records keep source order.
type NormalizedTable struct {
	Records    []Record   `json:"records"`
	Fields     FieldSet   `json:"fields"`
	Advisories []Advisory `json:"advisories"`
	Source     string     `json:"source"`
}

// Len returns the number of records.
func (t *NormalizedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Has reports whether an optional column was present in the source.
func (t *NormalizedTable) Has(field string) bool {
	if t == nil {
		return false
	}
	return t.Fields.Has(field)
}

// WithRecords returns a shallow copy of t holding records instead of t's.
func (t *NormalizedTable) WithRecords(records []Record) *NormalizedTable {
	return &NormalizedTable{
		Records:    records,
		Fields:     t.Fields,
		Advisories: t.Advisories,
		Source:     t.Source,
	}
}
