package source

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"paydash/internal/config"
)

// ErrUnknownSource is returned for a name outside the supported set.
var ErrUnknownSource = errors.New("source: unknown source")

// FromConfig builds the configured chain in order. client is used by the
// CSV export source and may be nil.
func FromConfig(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		switch name {
		case NameSheets:
			sources = append(sources, NewSheetsSource(cfg.SpreadsheetID, cfg.SheetGID, cfg.SheetName, cfg.CredentialsFile, logger))
		case NameCSVExport:
			sources = append(sources, NewCSVExportSource(cfg.ExportBaseURL, cfg.SpreadsheetID, cfg.SheetGID, client))
		case NameFile:
			sources = append(sources, NewFileSource(cfg.FilePath, cfg.SheetName))
		case NameDemo:
			sources = append(sources, NewDemoSource())
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
		}
	}
	return sources, nil
}
