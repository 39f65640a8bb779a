package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paydash/internal/ledger"
	"paydash/internal/shared/testutil"
)

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func workOrders(t *ledger.NormalizedTable) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Records {
		out = append(out, r.WorkOrderNo.Value)
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter keeps everything", Filter{}, []string{"WO-101", "WO-102", "WO-103", "WO-104"}},
		{"status is exact", Filter{Statuses: []string{"Completed"}}, []string{"WO-101"}},
		{"several statuses", Filter{Statuses: []string{"completed", "Unknown"}}, []string{"WO-103", "WO-104"}},
		{"mode", Filter{Modes: []string{"Online"}}, []string{"WO-101", "WO-104"}},
		{"status and mode", Filter{Statuses: []string{"Completed", "In Progress"}, Modes: []string{"Cash"}}, []string{"WO-102"}},
		{"inclusive lower bound", Filter{MinFinal: ptr("1200")}, []string{"WO-101", "WO-102"}},
		{"inclusive upper bound", Filter{MaxFinal: ptr("900")}, []string{"WO-103", "WO-104"}},
		{"closed range", Filter{MinFinal: ptr("900"), MaxFinal: ptr("1200")}, []string{"WO-101", "WO-103"}},
		{"no match", Filter{Statuses: []string{"Cancelled"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := testutil.SampleTable(t)
			got := tt.filter.Apply(table)

			require.NotNil(t, got)
			assert.Equal(t, tt.want, workOrders(got))
			assert.Equal(t, table.Source, got.Source)
			assert.Equal(t, table.Fields, got.Fields)
			assert.Equal(t, 4, table.Len(), "input is not modified")
		})
	}
}

func TestFilter_ModeIgnoredWithoutColumn(t *testing.T) {
	raw := ledger.RawTable{
		Columns: []string{"Work Order No", "Final Amount"},
		Records: []ledger.RawRecord{
			{"Work Order No": "A", "Final Amount": "1"},
			{"Work Order No": "B", "Final Amount": "2"},
		},
	}
	table, err := ledger.Process(raw)
	require.NoError(t, err)

	got := Filter{Modes: []string{"Online"}}.Apply(table)
	assert.Equal(t, []string{"A", "B"}, workOrders(got))
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{MinFinal: ptr("5"), MaxFinal: ptr("5")}.Validate())
	assert.ErrorIs(t, Filter{MinFinal: ptr("6"), MaxFinal: ptr("5")}.Validate(), ErrInvalidRange)
}

func TestFilter_Nil(t *testing.T) {
	assert.Nil(t, Filter{Statuses: []string{"x"}}.Apply(nil))
}
