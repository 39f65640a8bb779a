package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"paydash/internal/config"
	"paydash/internal/ledger"
)

// DefaultFileName is the download name offered by the dashboard.
const DefaultFileName = "filtered_payment_data.csv"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes normalized tables as CSV
type CSVWriter struct {
	dir      string
	fileName string
	bom      bool
	logger   *slog.Logger
}

// NewCSVWriter creates a writer for the configured export directory
func NewCSVWriter(cfg config.ExportConfig, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.FileName
	if name == "" {
		name = DefaultFileName
	}
	return &CSVWriter{
		dir:      cfg.Dir,
		fileName: name,
		bom:      cfg.BOM,
		logger:   logger.With(slog.String("component", "csv_exporter")),
	}
}

// FileName returns the configured export file name
func (w *CSVWriter) FileName() string {
	return w.fileName
}

// Write serializes t to out, header first
func (w *CSVWriter) Write(out io.Writer, t *ledger.NormalizedTable) error {
	if w.bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(ledger.DisplayColumns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	if t != nil {
		for i, r := range t.Records {
			if err := writer.Write(recordValues(r)); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes t to name inside the export directory. An empty name
// uses the configured file name. It returns the path written.
func (w *CSVWriter) WriteFile(name string, t *ledger.NormalizedTable) (string, error) {
	fullPath := w.resolvePath(name)

	w.logger.Info("Writing CSV file",
		slog.String("full_path", fullPath),
		slog.Int("record_count", t.Len()))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := w.Write(tmp, t); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return fullPath, nil
}

// resolvePath keeps absolute paths and places relative ones under the
// export directory
func (w *CSVWriter) resolvePath(name string) string {
	if name == "" {
		name = w.fileName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}
