package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// aliasRule lists the cleaned header names accepted for one canonical field,
// highest priority first. The canonical name itself always leads.
type aliasRule struct {
	field   string
	aliases []string
}

var aliasTable = []aliasRule{
	{FieldUnitName, []string{"unit_name", "unit", "unitname", "name"}},
	{FieldWorkOrderNo, []string{"work_order_no", "work_order", "wo_no", "order_no", "workorder"}},
	{FieldOrderAmount, []string{"order_amount", "order", "amount", "order_amt"}},
	{FieldFinalAmount, []string{"final_amount", "final", "final_amt", "total_amount"}},
	{FieldPaymentReceived, []string{"payment_received", "received", "paid"}},
	{FieldPendingAmount, []string{"pending_amount", "pending", "balance", "due_amount"}},
	{FieldPaymentMode, []string{"payment_mode", "mode", "payment_type", "type"}},
	{FieldWorkStatus, []string{"work_status", "status", "job_status"}},
	{FieldPDate, []string{"p_date", "date", "payment_date", "transaction_date"}},
}

// Aliases returns the accepted header names for a canonical field.
func Aliases(field string) []string {
	for _, rule := range aliasTable {
		if rule.field == field {
			out := make([]string, len(rule.aliases))
			copy(out, rule.aliases)
			return out
		}
	}
	return nil
}

// MappedTable is a table whose headers have been cleaned and resolved to
// canonical names where possible. The monetary columns are always present.
type MappedTable struct {
	Columns    []string
	Records    []map[string]any
	Advisories []Advisory
	Source     string
}

// Has reports whether the mapped table carries the named column.
func (m MappedTable) Has(column string) bool {
	for _, c := range m.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// MapColumns cleans headers, resolves aliases and fills in any missing
// monetary column with zeros. It never fails.
//
// When two headers clean to the same name the later one wins for every
// record and a header_collision advisory is recorded.
func MapColumns(raw RawTable) MappedTable {
	var advisories []Advisory

	rawColumns := columnsOf(raw)
	cleanedOf := make(map[string]string, len(rawColumns))
	winner := make(map[string]string, len(rawColumns))
	columns := make([]string, 0, len(rawColumns)+len(MonetaryFields))

	for _, header := range rawColumns {
		cleaned := CleanColumnName(header)
		cleanedOf[header] = cleaned
		if prev, seen := winner[cleaned]; seen {
			advisories = append(advisories, Advisory{
				Kind:    AdvisoryHeaderCollision,
				Column:  cleaned,
				Message: fmt.Sprintf("headers %q and %q both clean to %q; values from %q are used", prev, header, cleaned, header),
			})
		} else {
			columns = append(columns, cleaned)
		}
		winner[cleaned] = header
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	renamed := make(map[string]string)
	for _, rule := range aliasTable {
		if present[rule.field] {
			continue
		}
		for _, alias := range rule.aliases {
			if !present[alias] {
				continue
			}
			renamed[alias] = rule.field
			delete(present, alias)
			present[rule.field] = true
			for i, c := range columns {
				if c == alias {
					columns[i] = rule.field
					break
				}
			}
			break
		}
	}

	finalName := func(cleaned string) string {
		if to, ok := renamed[cleaned]; ok {
			return to
		}
		return cleaned
	}

	records := make([]map[string]any, len(raw.Records))
	for i, row := range raw.Records {
		rec := make(map[string]any, len(columns)+len(MonetaryFields))
		for _, header := range rawColumns {
			rec[finalName(cleanedOf[header])] = row[header]
		}
		records[i] = rec
	}

	for _, field := range MonetaryFields {
		if present[field] {
			continue
		}
		columns = append(columns, field)
		present[field] = true
		for _, rec := range records {
			rec[field] = decimal.Zero
		}
		advisories = append(advisories, Advisory{
			Kind:    AdvisoryMissingColumn,
			Column:  field,
			Message: fmt.Sprintf("column %q not found; filled with 0", field),
		})
	}

	return MappedTable{
		Columns:    columns,
		Records:    records,
		Advisories: advisories,
		Source:     raw.Source,
	}
}

// columnsOf returns the header order of raw. Tables built without an
// explicit header list get the union of their record keys, sorted.
func columnsOf(raw RawTable) []string {
	if len(raw.Columns) > 0 {
		return raw.Columns
	}

	seen := make(map[string]bool)
	var cols []string
	for _, row := range raw.Records {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
