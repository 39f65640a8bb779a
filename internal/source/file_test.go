package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"paydash/internal/ledger"
)

func writeWorkbook(t *testing.T, path string, sheets map[string][][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestFileSource_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writeWorkbook(t, path, map[string][][]any{
		"Pri Payment": {
			{"Unit Name", "Final Amount", "Payment Received", "Date"},
			{"Unit A", 1200.5, 200.25, 45292},
			{"Unit B", "1,000.00"},
		},
	})

	table, err := NewFileSource(path, "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NameFile, table.Source)
	require.Equal(t, 2, table.Len())

	normalized, err := ledger.Process(table)
	require.NoError(t, err)

	a := normalized.Records[0]
	assert.Equal(t, "1200.5", a.FinalAmount.String())
	assert.Equal(t, "1000.25", a.PendingAmount.String())
	require.NotNil(t, a.PaymentDate)
	assert.Equal(t, "2024-01-01", a.PaymentDate.Format("2006-01-02"))
	assert.Equal(t, 2024, a.Year)

	b := normalized.Records[1]
	assert.Equal(t, "1000", b.FinalAmount.String())
	assert.Nil(t, b.PaymentDate)
}

func TestFileSource_XLSXSheetSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writeWorkbook(t, path, map[string][][]any{
		"Summary":     {{"Total"}, {"1"}},
		"Pri Payment": {{"Unit Name"}, {"Unit A"}, {"Unit B"}},
	})

	table, err := NewFileSource(path, "Pri Payment").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit Name"}, table.Columns)
	assert.Equal(t, 2, table.Len())
}

func TestFileSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(ledgerCSV), 0o600))

	table, err := NewFileSource(path, "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	_, err := NewFileSource(jsonPath, "").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewFileSource("", "").Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewFileSource(filepath.Join(dir, "missing.csv"), "").Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewFileSource(filepath.Join(dir, "missing.xlsx"), "").Fetch(context.Background())
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = NewFileSource(empty, "").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestFileSource_Directory(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileSource(dir, "").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmptySource)

	old := filepath.Join(dir, "march.csv")
	require.NoError(t, os.WriteFile(old, []byte("Work Order No,Final Amount\nWO-1,10\n"), 0o600))
	latest := filepath.Join(dir, "april.csv")
	require.NoError(t, os.WriteFile(latest, []byte(ledgerCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$april.xlsx"), []byte("lock"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	files, err := FindLedgerFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "april.csv", files[0].Name)
	assert.Equal(t, "march.csv", files[1].Name)

	table, err := NewFileSource(dir, "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = FindLedgerFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
