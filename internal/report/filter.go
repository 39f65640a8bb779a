package report

import (
	"errors"

	"github.com/shopspring/decimal"

	"paydash/internal/ledger"
)

// ErrInvalidRange is returned when the lower bound exceeds the upper bound.
var ErrInvalidRange = errors.New("report: min_final exceeds max_final")

// Filter selects records. Empty status and mode sets match everything; nil
// bounds are open. Status and mode comparisons are exact.
type Filter struct {
	Statuses []string         `json:"statuses,omitempty"`
	Modes    []string         `json:"modes,omitempty"`
	MinFinal *decimal.Decimal `json:"min_final,omitempty"`
	MaxFinal *decimal.Decimal `json:"max_final,omitempty"`
}

// IsZero reports whether f selects every record.
func (f Filter) IsZero() bool {
	return len(f.Statuses) == 0 && len(f.Modes) == 0 && f.MinFinal == nil && f.MaxFinal == nil
}

// Validate checks that the bounds are ordered.
func (f Filter) Validate() error {
	if f.MinFinal != nil && f.MaxFinal != nil && f.MinFinal.GreaterThan(*f.MaxFinal) {
		return ErrInvalidRange
	}
	return nil
}

// Apply returns a table holding the matching records of t in their original
// order. The mode set is ignored when t has no payment mode column.
func (f Filter) Apply(t *ledger.NormalizedTable) *ledger.NormalizedTable {
	if t == nil {
		return nil
	}
	if f.IsZero() {
		return t
	}

	statuses := toSet(f.Statuses)
	modes := toSet(f.Modes)
	if !t.Has(ledger.FieldPaymentMode) {
		modes = nil
	}

	out := make([]ledger.Record, 0, len(t.Records))
	for _, r := range t.Records {
		if statuses != nil && !statuses[r.WorkStatus] {
			continue
		}
		if modes != nil {
			mode, _ := r.PaymentMode.Get()
			if !modes[mode] {
				continue
			}
		}
		if f.MinFinal != nil && r.FinalAmount.LessThan(*f.MinFinal) {
			continue
		}
		if f.MaxFinal != nil && r.FinalAmount.GreaterThan(*f.MaxFinal) {
			continue
		}
		out = append(out, r)
	}
	return t.WithRecords(out)
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
