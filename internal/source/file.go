package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	apierrors "paydash/internal/errors"
	"paydash/internal/ledger"
)

// FileSource reads a local .csv, .xlsx or .xls ledger. When path is a
// directory the most recently modified ledger file inside it is read.
type FileSource struct {
	path  string
	sheet string
}

// NewFileSource builds a FileSource. sheet selects the worksheet of a
// workbook by name; when empty or missing the first worksheet is used.
func NewFileSource(path, sheet string) *FileSource {
	return &FileSource{path: path, sheet: sheet}
}

func (s *FileSource) Name() string { return NameFile }

func (s *FileSource) Fetch(ctx context.Context) (ledger.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return ledger.RawTable{Source: NameFile}, err
	}

	path, err := resolveLedgerPath(s.path)
	if err != nil {
		return ledger.RawTable{Source: NameFile}, err
	}

	var rows [][]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSVFile(path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, s.sheet)
	case ".xls":
		rows, err = readXLS(path, s.sheet)
	default:
		return ledger.RawTable{Source: NameFile}, fmt.Errorf("%s %q: %w", NameFile, ext, ErrUnsupportedFormat)
	}
	if err != nil {
		return ledger.RawTable{Source: NameFile}, err
	}

	return tableFromRows(NameFile, rows)
}

func readCSVFile(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewSourceError("open ledger file", err).WithContext("path", path)
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, apierrors.NewParsingError("parse ledger csv", err).WithContext("path", path)
	}
	return stringRows(rows), nil
}

// readXLSX returns raw cell values so date cells arrive as serial numbers
// instead of in whatever display format the workbook uses.
func readXLSX(path, sheet string) ([][]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apierrors.NewSourceError("open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no worksheets: %w", NameFile, ErrEmptySource)
	}
	name := sheets[0]
	for _, candidate := range sheets {
		if sheet != "" && candidate == sheet {
			name = candidate
			break
		}
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apierrors.NewParsingError("read worksheet", err).
			WithContext("path", path).
			WithContext("sheet", name)
	}
	return stringRows(rows), nil
}

func readXLS(path, sheetName string) ([][]any, error) {
	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, apierrors.NewSourceError("open legacy workbook", err).WithContext("path", path)
	}

	sheet := book.GetSheet(0)
	for i := 0; i < book.NumSheets(); i++ {
		if candidate := book.GetSheet(i); candidate != nil && sheetName != "" && candidate.Name == sheetName {
			sheet = candidate
			break
		}
	}
	if sheet == nil {
		return nil, fmt.Errorf("%s: legacy workbook has no worksheets: %w", NameFile, ErrEmptySource)
	}

	var rows [][]any
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]any, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
