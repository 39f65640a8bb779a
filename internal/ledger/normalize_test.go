package ledger

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProcess_EndToEnd(t *testing.T) {
	raw := RawTable{
		Columns: []string{"Order Amount", "Final Amount", "Payment Received", "Work Status"},
		Records: []RawRecord{{
			"Order Amount":     "79,290,940.00",
			"Final Amount":     "91,102,303.30",
			"Payment Received": "36,923,263.30",
			"Work Status":      "",
		}},
	}

	table, err := Process(raw)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	rec := table.Records[0]
	assert.True(t, dec("79290940.00").Equal(rec.OrderAmount))
	assert.True(t, dec("91102303.30").Equal(rec.FinalAmount))
	assert.True(t, dec("36923263.30").Equal(rec.PaymentReceived))
	assert.True(t, dec("54179040.00").Equal(rec.PendingAmount), "pending %s", rec.PendingAmount)
	assert.Equal(t, "Unknown", rec.WorkStatus)
	assert.Equal(t, 2024, rec.Year)
	assert.Nil(t, rec.PaymentDate)
}

func TestProcess_HugeExponentCellIsZero(t *testing.T) {
	raw := RawTable{
		Columns: []string{"Work Order No", "Final Amount", "Payment Received"},
		Records: []RawRecord{
			{"Work Order No": "WO-1", "Final Amount": "1e400000000", "Payment Received": "1"},
			{"Work Order No": "WO-2", "Final Amount": "500", "Payment Received": "200"},
		},
	}

	type result struct {
		table *NormalizedTable
		err   error
	}
	done := make(chan result, 1)
	go func() {
		table, err := Process(raw)
		done <- result{table, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return for a cell with a huge exponent")
	}

	require.NoError(t, res.err)
	require.Equal(t, 2, res.table.Len())
	assert.True(t, res.table.Records[0].FinalAmount.IsZero())
	assert.True(t, dec("-1").Equal(res.table.Records[0].PendingAmount))
	assert.True(t, dec("300").Equal(res.table.Records[1].PendingAmount))
}

func TestNormalize_PendingAlwaysRecomputed(t *testing.T) {
	raw := RawTable{
		Columns: []string{"final", "paid", "pending"},
		Records: []RawRecord{
			{"final": "100", "paid": "40", "pending": "999"},
			{"final": "₹1,000.50", "paid": "1,000.50", "pending": ""},
			{"final": "10", "paid": "25", "pending": "0"},
			{"final": "abc", "paid": nil, "pending": "5"},
		},
	}

	table, err := Process(raw)
	require.NoError(t, err)

	for i, rec := range table.Records {
		assert.True(t, rec.FinalAmount.Sub(rec.PaymentReceived).Equal(rec.PendingAmount), "row %d", i)
	}
	assert.True(t, dec("60").Equal(table.Records[0].PendingAmount))
	assert.True(t, decimal.Zero.Equal(table.Records[1].PendingAmount))
	assert.True(t, dec("-15").Equal(table.Records[2].PendingAmount))
	assert.True(t, decimal.Zero.Equal(table.Records[3].PendingAmount))
}

func TestNormalize_WorkStatus(t *testing.T) {
	t.Run("absent column", func(t *testing.T) {
		table, err := Process(RawTable{
			Columns: []string{"final"},
			Records: []RawRecord{{"final": "1"}, {"final": "2"}},
		})
		require.NoError(t, err)
		for _, rec := range table.Records {
			assert.Equal(t, DefaultWorkStatus, rec.WorkStatus)
		}
		assert.False(t, table.Has(FieldWorkStatus))
	})

	t.Run("present column", func(t *testing.T) {
		table, err := Process(RawTable{
			Columns: []string{"Status"},
			Records: []RawRecord{
				{"Status": "  In Progress "},
				{"Status": ""},
				{"Status": nil},
				{"Status": "   "},
				{"Status": "completed"},
			},
		})
		require.NoError(t, err)

		got := make([]string, 0, table.Len())
		for _, rec := range table.Records {
			assert.NotEmpty(t, rec.WorkStatus)
			got = append(got, rec.WorkStatus)
		}
		assert.Equal(t, []string{"In Progress", "Unknown", "Unknown", "Unknown", "completed"}, got)
		assert.True(t, table.Has(FieldWorkStatus))
	})
}

func TestNormalize_Dates(t *testing.T) {
	t.Run("no date column", func(t *testing.T) {
		table, err := Process(RawTable{
			Columns: []string{"final"},
			Records: []RawRecord{{"final": "1"}, {"final": "2"}},
		})
		require.NoError(t, err)
		for _, rec := range table.Records {
			assert.Equal(t, 2024, rec.Year)
			assert.Nil(t, rec.PaymentDate)
			assert.False(t, rec.PDate.Valid)
		}
	})

	t.Run("date column", func(t *testing.T) {
		table, err := Process(RawTable{
			Columns: []string{"Date"},
			Records: []RawRecord{
				{"Date": "15/01/2023"},
				{"Date": "garbage"},
				{"Date": nil},
				{"Date": 45292.0},
			},
		})
		require.NoError(t, err)

		recs := table.Records
		require.NotNil(t, recs[0].PaymentDate)
		assert.Equal(t, time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC), *recs[0].PaymentDate)
		assert.Equal(t, 2023, recs[0].Year)
		assert.Equal(t, Some("15/01/2023"), recs[0].PDate)

		assert.Nil(t, recs[1].PaymentDate)
		assert.Equal(t, 2024, recs[1].Year)
		assert.Equal(t, Some("garbage"), recs[1].PDate)

		assert.Nil(t, recs[2].PaymentDate)
		assert.Equal(t, 2024, recs[2].Year)

		require.NotNil(t, recs[3].PaymentDate)
		assert.Equal(t, 2024, recs[3].Year)
	})
}

func TestNormalize_OptionalFields(t *testing.T) {
	table, err := Process(RawTable{
		Columns: []string{"Unit Name", "WO No", "Mode"},
		Records: []RawRecord{{"Unit Name": "Unit A", "WO No": "WO001", "Mode": nil}},
	})
	require.NoError(t, err)

	rec := table.Records[0]
	assert.Equal(t, Some("Unit A"), rec.UnitName)
	assert.Equal(t, Some("WO001"), rec.WorkOrderNo)
	assert.Equal(t, Some(""), rec.PaymentMode)
	assert.False(t, rec.PDate.Valid)

	assert.True(t, table.Has(FieldUnitName))
	assert.True(t, table.Has(FieldPaymentMode))
	assert.False(t, table.Has(FieldPDate))
}

func TestNormalize_NoData(t *testing.T) {
	table, err := Process(RawTable{Columns: []string{"Order Amount", "Final Amount"}})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, table)

	_, err = Normalize(MappedTable{})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNormalize_PreservesRowOrder(t *testing.T) {
	raw := RawTable{Columns: []string{"Work Order", "final"}}
	for _, wo := range []string{"WO3", "WO1", "WO2"} {
		raw.Records = append(raw.Records, RawRecord{"Work Order": wo, "final": "1"})
	}

	table, err := Process(raw)
	require.NoError(t, err)

	var got []string
	for _, rec := range table.Records {
		got = append(got, rec.WorkOrderNo.Value)
	}
	assert.Equal(t, []string{"WO3", "WO1", "WO2"}, got)
}

func TestNormalize_CarriesAdvisoriesAndSource(t *testing.T) {
	table, err := Process(RawTable{
		Columns: []string{"final"},
		Records: []RawRecord{{"final": "1"}},
		Source:  "demo",
	})
	require.NoError(t, err)

	assert.Equal(t, "demo", table.Source)
	assert.Len(t, table.Advisories, 3)
}

func TestProcess_ConcurrentCallsAgree(t *testing.T) {
	raw := RawTable{
		Columns: []string{"Final Amount", "Payment Received", "Date"},
		Records: []RawRecord{
			{"Final Amount": "1,000", "Payment Received": "250", "Date": "01/02/2024"},
			{"Final Amount": "500", "Payment Received": "", "Date": ""},
		},
	}

	want, err := Process(raw)
	require.NoError(t, err)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Process(raw)
			if !assert.NoError(t, err) {
				return
			}
			gotJSON, err := json.Marshal(got)
			assert.NoError(t, err)
			assert.JSONEq(t, string(wantJSON), string(gotJSON))
		}()
	}
	wg.Wait()
}

func TestOptional_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
	}{A: Some("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":null}`, string(b))
}
