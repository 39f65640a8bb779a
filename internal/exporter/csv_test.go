package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paydash/internal/config"
	"paydash/internal/ledger"
	"paydash/internal/shared/testutil"
)

func readBack(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_Write(t *testing.T) {
	w := NewCSVWriter(config.ExportConfig{}, nil)

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, testutil.SampleTable(t)))

	rows := readBack(t, buf.Bytes())
	require.Len(t, rows, 5)
	assert.Equal(t, ledger.DisplayColumns, rows[0])

	assert.Equal(t, []string{
		"North Plant", "WO-101", "1000", "1200", "1200", "0",
		"Online", "Completed", "05/01/2023", "2023-01-05", "2023",
	}, rows[1])

	// Unparseable and blank cells.
	assert.Equal(t, []string{
		"East Yard", "WO-103", "800", "900", "0", "900",
		"Cheque", "Unknown", "garbage", "", "2024",
	}, rows[3])
}

func TestCSVWriter_LosslessDecimals(t *testing.T) {
	raw := ledger.RawTable{
		Columns: []string{"Final Amount", "Payment Received"},
		Records: []ledger.RawRecord{{"Final Amount": "12,345,678,901.123456", "Payment Received": "0.000001"}},
	}
	table, err := ledger.Process(raw)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(config.ExportConfig{}, nil).Write(&buf, table))

	rows := readBack(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, "12345678901.123456", rows[1][3])
	assert.Equal(t, "0.000001", rows[1][4])
	assert.Equal(t, "12345678901.123455", rows[1][5])
	assert.Equal(t, "", rows[1][0], "absent unit name")
}

func TestCSVWriter_BOM(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(config.ExportConfig{BOM: true}, nil)
	require.NoError(t, w.Write(&buf, testutil.SampleTable(t)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

	buf.Reset()
	require.NoError(t, NewCSVWriter(config.ExportConfig{}, nil).Write(&buf, nil))
	assert.Equal(t, "unit_name", buf.String()[:len("unit_name")])
}

func TestCSVWriter_WriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	logger, logs := testutil.NewTestLogger(t)
	w := NewCSVWriter(config.ExportConfig{Dir: dir}, logger)
	assert.Equal(t, DefaultFileName, w.FileName())

	path, err := w.WriteFile("", testutil.SampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readBack(t, data), 5)
	testutil.AssertLogAttr(t, logs, "record_count", int64(4))

	abs := filepath.Join(t.TempDir(), "custom.csv")
	path, err = w.WriteFile(abs, testutil.SampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, abs, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
