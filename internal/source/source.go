package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paydash/internal/ledger"
)

// Source names accepted in configuration.
const (
	NameSheets    = "sheets"
	NameCSVExport = "csv_export"
	NameFile      = "file"
	NameDemo      = "demo"
)

var (
	// ErrEmptySource means a source answered but held no records.
	ErrEmptySource = errors.New("source: no records")

	// ErrAllSourcesFailed wraps the individual failures of a load.
	ErrAllSourcesFailed = errors.New("source: all sources failed")

	// ErrUnsupportedFormat is returned by FileSource for unknown extensions.
	ErrUnsupportedFormat = errors.New("source: unsupported file format")

	// ErrNotShared means the export endpoint answered with a sign-in page.
	ErrNotShared = errors.New("source: spreadsheet is not shared for export")
)

// Source produces a raw ledger table.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (ledger.RawTable, error)
}

// remote is implemented by sources that call out over the network and are
// therefore throttled by the loader.
type remote interface {
	Remote() bool
}

func isRemote(s Source) bool {
	r, ok := s.(remote)
	return ok && r.Remote()
}

// Attempt records one try of one source.
type Attempt struct {
	Source    string        `json:"source"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration"`
	Rows      int           `json:"rows"`
	FromCache bool          `json:"from_cache"`
	Err       error         `json:"-"`
}

// OK reports whether the attempt produced a table.
func (a Attempt) OK() bool { return a.Err == nil }

func (a Attempt) MarshalJSON() ([]byte, error) {
	type plain Attempt
	out := struct {
		plain
		DurationMS int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
	}{plain: plain(a), DurationMS: a.Duration.Milliseconds()}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return json.Marshal(out)
}

// tableFromRows turns a header row plus data rows into a RawTable.
//
// Short rows are padded with nil, cells beyond the header are dropped and
// rows whose cells are all blank are skipped. Blank header cells become
// "Unnamed: N" and repeated headers get a ".N" suffix so no column is lost.
func tableFromRows(name string, rows [][]any) (ledger.RawTable, error) {
	if len(rows) == 0 {
		return ledger.RawTable{Source: name}, fmt.Errorf("%s: %w", name, ErrEmptySource)
	}

	columns := headerNames(rows[0])
	table := ledger.RawTable{Columns: columns, Source: name}

	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(ledger.RawRecord, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		table.Records = append(table.Records, rec)
	}

	if len(table.Records) == 0 {
		return table, fmt.Errorf("%s: %w", name, ErrEmptySource)
	}
	return table, nil
}

func headerNames(header []any) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(fmt.Sprint(cellOrEmpty(cell)))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

func cellOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func blankRow(row []any) bool {
	for _, cell := range row {
		if cell == nil {
			continue
		}
		if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

func stringRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		out[i] = cells
	}
	return out
}
