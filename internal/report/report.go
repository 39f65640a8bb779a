// Package report aggregates a normalized ledger into the figures shown on the
// payment dashboard: KPI totals, received amounts per payment mode, pending
// amounts per work status, a per-status summary and yearly totals.
//
// Every function is pure and works on decimals, so totals are exact.
package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"paydash/internal/ledger"
)

// Totals are the KPI figures of a table.
type Totals struct {
	Records         int             `json:"records"`
	OrderAmount     decimal.Decimal `json:"order_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	PaymentReceived decimal.Decimal `json:"payment_received"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
}

// ModeAmount is the amount received through one payment mode.
type ModeAmount struct {
	Mode   string          `json:"mode"`
	Amount decimal.Decimal `json:"amount"`
}

// StatusAmount is the amount pending under one work status.
type StatusAmount struct {
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

// StatusRow summarizes one work status. Pending is what the dashboard shows:
// zero for completed work, ActualPending otherwise.
type StatusRow struct {
	Status        string          `json:"status"`
	Count         int             `json:"count"`
	TotalFinal    decimal.Decimal `json:"total_final"`
	TotalReceived decimal.Decimal `json:"total_received"`
	ActualPending decimal.Decimal `json:"actual_pending"`
	Pending       decimal.Decimal `json:"pending"`
}

// YearRow holds the sums of one payment year.
type YearRow struct {
	Year            int             `json:"year"`
	OrderAmount     decimal.Decimal `json:"order_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	PaymentReceived decimal.Decimal `json:"payment_received"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
}

// Range is an inclusive final_amount interval.
type Range struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Options lists the distinct filter values in order of first appearance.
type Options struct {
	Statuses []string `json:"statuses"`
	Modes    []string `json:"modes"`
}

// Summary bundles every figure for one table.
type Summary struct {
	Source          string            `json:"source"`
	Totals          Totals            `json:"totals"`
	ByPaymentMode   []ModeAmount      `json:"by_payment_mode"`
	HasPaymentMode  bool              `json:"has_payment_mode"`
	PendingByStatus []StatusAmount    `json:"pending_by_status"`
	Statuses        []StatusRow       `json:"statuses"`
	Yearly          []YearRow         `json:"yearly"`
	FinalRange      Range             `json:"final_range"`
	Options         Options           `json:"options"`
	Advisories      []ledger.Advisory `json:"advisories"`
}

// ComputeTotals sums the monetary columns of t.
func ComputeTotals(t *ledger.NormalizedTable) Totals {
	totals := Totals{Records: t.Len()}
	if t == nil {
		return totals
	}
	for _, r := range t.Records {
		totals.OrderAmount = totals.OrderAmount.Add(r.OrderAmount)
		totals.FinalAmount = totals.FinalAmount.Add(r.FinalAmount)
		totals.PaymentReceived = totals.PaymentReceived.Add(r.PaymentReceived)
		totals.PendingAmount = totals.PendingAmount.Add(r.PendingAmount)
	}
	return totals
}

// ByPaymentMode sums payment_received per mode, keeps positive sums and
// sorts them by amount, largest first. It returns nil when the source had no
// payment mode column.
func ByPaymentMode(t *ledger.NormalizedTable) []ModeAmount {
	if !t.Has(ledger.FieldPaymentMode) {
		return nil
	}

	sums := make(map[string]decimal.Decimal)
	for _, r := range t.Records {
		mode, ok := r.PaymentMode.Get()
		if !ok {
			continue
		}
		sums[mode] = sums[mode].Add(r.PaymentReceived)
	}

	out := make([]ModeAmount, 0, len(sums))
	for mode, amount := range sums {
		if amount.IsPositive() {
			out = append(out, ModeAmount{Mode: mode, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

// PendingByStatus sums pending_amount per work status and keeps positive
// sums, ordered by status.
func PendingByStatus(t *ledger.NormalizedTable) []StatusAmount {
	if t == nil {
		return nil
	}
	sums := make(map[string]decimal.Decimal)
	for _, r := range t.Records {
		sums[r.WorkStatus] = sums[r.WorkStatus].Add(r.PendingAmount)
	}

	out := make([]StatusAmount, 0, len(sums))
	for _, status := range sortedKeys(sums) {
		if amount := sums[status]; amount.IsPositive() {
			out = append(out, StatusAmount{Status: status, Amount: amount})
		}
	}
	return out
}

// StatusSummary groups records by exact work status, ordered by status.
func StatusSummary(t *ledger.NormalizedTable) []StatusRow {
	if t == nil {
		return nil
	}
	rows := make(map[string]*StatusRow)
	for _, r := range t.Records {
		row, ok := rows[r.WorkStatus]
		if !ok {
			row = &StatusRow{Status: r.WorkStatus}
			rows[r.WorkStatus] = row
		}
		row.Count++
		row.TotalFinal = row.TotalFinal.Add(r.FinalAmount)
		row.TotalReceived = row.TotalReceived.Add(r.PaymentReceived)
		row.ActualPending = row.ActualPending.Add(r.PendingAmount)
	}

	out := make([]StatusRow, 0, len(rows))
	for _, status := range sortedKeys(rows) {
		row := *rows[status]
		row.Pending = row.ActualPending
		if IsCompleted(status) {
			row.Pending = decimal.Zero
		}
		out = append(out, row)
	}
	return out
}

// IsCompleted reports whether status denotes finished work.
func IsCompleted(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "completed")
}

// Yearly sums the monetary columns per payment year, in year order.
func Yearly(t *ledger.NormalizedTable) []YearRow {
	if t == nil {
		return nil
	}
	rows := make(map[int]*YearRow)
	for _, r := range t.Records {
		row, ok := rows[r.Year]
		if !ok {
			row = &YearRow{Year: r.Year}
			rows[r.Year] = row
		}
		row.OrderAmount = row.OrderAmount.Add(r.OrderAmount)
		row.FinalAmount = row.FinalAmount.Add(r.FinalAmount)
		row.PaymentReceived = row.PaymentReceived.Add(r.PaymentReceived)
		row.PendingAmount = row.PendingAmount.Add(r.PendingAmount)
	}

	out := make([]YearRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// FinalRange returns the smallest and largest final_amount in t.
func FinalRange(t *ledger.NormalizedTable) Range {
	var rng Range
	if t == nil {
		return rng
	}
	for i, r := range t.Records {
		if i == 0 || r.FinalAmount.LessThan(rng.Min) {
			rng.Min = r.FinalAmount
		}
		if i == 0 || r.FinalAmount.GreaterThan(rng.Max) {
			rng.Max = r.FinalAmount
		}
	}
	return rng
}

// FilterOptions lists the statuses and modes present in t.
func FilterOptions(t *ledger.NormalizedTable) Options {
	opts := Options{Statuses: []string{}, Modes: []string{}}
	if t == nil {
		return opts
	}
	seenStatus := make(map[string]bool)
	seenMode := make(map[string]bool)
	hasMode := t.Has(ledger.FieldPaymentMode)
	for _, r := range t.Records {
		if !seenStatus[r.WorkStatus] {
			seenStatus[r.WorkStatus] = true
			opts.Statuses = append(opts.Statuses, r.WorkStatus)
		}
		if !hasMode {
			continue
		}
		if mode, ok := r.PaymentMode.Get(); ok && !seenMode[mode] {
			seenMode[mode] = true
			opts.Modes = append(opts.Modes, mode)
		}
	}
	return opts
}

// Summarize computes every figure for t.
func Summarize(t *ledger.NormalizedTable) Summary {
	s := Summary{
		Totals:          ComputeTotals(t),
		ByPaymentMode:   ByPaymentMode(t),
		HasPaymentMode:  t.Has(ledger.FieldPaymentMode),
		PendingByStatus: PendingByStatus(t),
		Statuses:        StatusSummary(t),
		Yearly:          Yearly(t),
		Options:         FilterOptions(t),
		Advisories:      []ledger.Advisory{},
	}
	if t != nil {
		s.Source = t.Source
		s.FinalRange = FinalRange(t)
		if t.Advisories != nil {
			s.Advisories = t.Advisories
		}
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
