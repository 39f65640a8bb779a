package source

import (
	"context"

	"paydash/internal/ledger"
)

var demoRows = [][]any{
	{"Unit Name", "Work Order No", "Order Amount", "Final Amount", "Payment Received", "Pending Amount", "Payment Mode", "Work Status", "Date"},
	{"Unit A", "WO001", "79,290,940.00", "91,102,303.30", "36,923,263.30", "0.00", "Online", "Completed", "01/01/2024"},
	{"Unit B", "WO002", "65,000,000.00", "75,000,000.00", "30,000,000.00", "0.00", "Cash", "In Progress", "15/01/2024"},
	{"Unit C", "WO003", "45,500,000.00", "52,500,000.00", "25,000,000.00", "0.00", "Cheque", "Pending", "20/01/2024"},
	{"Unit D", "WO004", "38,750,000.00", "44,750,000.00", "18,500,000.00", "0.00", "Cash and Online", "Completed", "25/01/2024"},
}

// DemoSource serves a fixed four-row ledger. It is the last resort of the
// default chain so the dashboard always has something to show.
type DemoSource struct{}

func NewDemoSource() *DemoSource { return &DemoSource{} }

func (DemoSource) Name() string { return NameDemo }

func (DemoSource) Fetch(ctx context.Context) (ledger.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return ledger.RawTable{Source: NameDemo}, err
	}
	return tableFromRows(NameDemo, demoRows)
}
