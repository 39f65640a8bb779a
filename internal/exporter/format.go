package exporter

import (
	"strconv"

	"github.com/shopspring/decimal"

	"paydash/internal/ledger"
)

const dateLayout = "2006-01-02"

// formatDecimal writes the exact value, with no rounding or exponent.
func formatDecimal(d decimal.Decimal) string {
	return d.String()
}

// formatOptional leaves absent values as an empty cell.
func formatOptional(o ledger.Optional[string]) string {
	v, ok := o.Get()
	if !ok {
		return ""
	}
	return v
}

// recordValues renders r in ledger.DisplayColumns order.
func recordValues(r ledger.Record) []string {
	date := ""
	if r.PaymentDate != nil {
		date = r.PaymentDate.Format(dateLayout)
	}
	return []string{
		formatOptional(r.UnitName),
		formatOptional(r.WorkOrderNo),
		formatDecimal(r.OrderAmount),
		formatDecimal(r.FinalAmount),
		formatDecimal(r.PaymentReceived),
		formatDecimal(r.PendingAmount),
		formatOptional(r.PaymentMode),
		r.WorkStatus,
		formatOptional(r.PDate),
		date,
		strconv.Itoa(r.Year),
	}
}
