package ledger

import (
	"strings"
)

var optionalTextFields = []string{
	FieldUnitName,
	FieldWorkOrderNo,
	FieldPaymentMode,
	FieldPDate,
}

// canonicalFields are the mapped columns tracked in NormalizedTable.Fields.
var canonicalFields = map[string]bool{
	FieldUnitName:        true,
	FieldWorkOrderNo:     true,
	FieldOrderAmount:     true,
	FieldFinalAmount:     true,
	FieldPaymentReceived: true,
	FieldPendingAmount:   true,
	FieldPaymentMode:     true,
	FieldWorkStatus:      true,
	FieldPDate:           true,
}

// Normalize types every record of a mapped table. pending_amount is always
// recomputed as final_amount - payment_received; work_status falls back to
// DefaultWorkStatus; year falls back to DefaultYear.
//
// A table without records yields ErrNoData.
func Normalize(mapped MappedTable) (*NormalizedTable, error) {
	if len(mapped.Records) == 0 {
		return nil, ErrNoData
	}

	fields := make(FieldSet)
	for _, c := range mapped.Columns {
		if canonicalFields[c] {
			fields[c] = true
		}
	}
	hasStatus := fields.Has(FieldWorkStatus)
	hasDate := fields.Has(FieldPDate)

	records := make([]Record, len(mapped.Records))
	for i, row := range mapped.Records {
		rec := Record{
			OrderAmount:     ParseAmount(row[FieldOrderAmount]),
			FinalAmount:     ParseAmount(row[FieldFinalAmount]),
			PaymentReceived: ParseAmount(row[FieldPaymentReceived]),
			WorkStatus:      DefaultWorkStatus,
			Year:            DefaultYear,
		}
		rec.PendingAmount = rec.FinalAmount.Sub(rec.PaymentReceived)

		if hasStatus {
			rec.WorkStatus = normalizeStatus(row[FieldWorkStatus])
		}

		for _, f := range optionalTextFields {
			if !fields.Has(f) {
				continue
			}
			v := Some(cellText(row[f]))
			switch f {
			case FieldUnitName:
				rec.UnitName = v
			case FieldWorkOrderNo:
				rec.WorkOrderNo = v
			case FieldPaymentMode:
				rec.PaymentMode = v
			case FieldPDate:
				rec.PDate = v
			}
		}

		if hasDate {
			if t, ok := ParseDate(row[FieldPDate]); ok {
				rec.PaymentDate = &t
				rec.Year = t.Year()
			}
		}

		records[i] = rec
	}

	return &NormalizedTable{
		Records:    records,
		Fields:     fields,
		Advisories: mapped.Advisories,
		Source:     mapped.Source,
	}, nil
}

func normalizeStatus(raw any) string {
	s := strings.TrimSpace(cellText(raw))
	if s == "" {
		return DefaultWorkStatus
	}
	return s
}

// Process maps and normalizes a raw table in one step.
func Process(raw RawTable) (*NormalizedTable, error) {
	return Normalize(MapColumns(raw))
}
