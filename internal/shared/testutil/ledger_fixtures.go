package testutil

import (
	"testing"

	"paydash/internal/ledger"
)

// SampleColumns is the header row used by SampleRawTable. Every canonical
// field is present, so mapping raises no advisories.
var SampleColumns = []string{
	"Unit Name", "Work Order No", "Order Amount", "Final Amount",
	"Payment Received", "Pending Amount", "Payment Mode", "Work Status", "Date",
}

// SampleRows are the cells of SampleRawTable in SampleColumns order.
var SampleRows = [][]any{
	{"North Plant", "WO-101", "1,000.00", "1,200.00", "1,200.00", "0", "Online", "Completed", "05/01/2023"},
	{"South Plant", "WO-102", "2,500.00", "2,750.50", "1,000.00", "999", "Cash", "In Progress", "12/03/2024"},
	{"East Yard", "WO-103", "₹800", "900", "", "", "Cheque", "", "garbage"},
	{"West Yard", "WO-104", "400", "450.25", "450.25", "0", "Online", "completed", ""},
}

// SampleRawTable returns a fresh raw table built from SampleColumns and SampleRows.
func SampleRawTable() ledger.RawTable {
	raw := ledger.RawTable{
		Columns: append([]string(nil), SampleColumns...),
		Source:  "fixture",
	}
	for _, row := range SampleRows {
		rec := make(ledger.RawRecord, len(SampleColumns))
		for i, col := range SampleColumns {
			rec[col] = row[i]
		}
		raw.Records = append(raw.Records, rec)
	}
	return raw
}

// SampleTable runs SampleRawTable through the pipeline and fails the test on error.
func SampleTable(t testing.TB) *ledger.NormalizedTable {
	t.Helper()
	table, err := ledger.Process(SampleRawTable())
	if err != nil {
		t.Fatalf("process sample table: %v", err)
	}
	return table
}
