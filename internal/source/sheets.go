package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	apierrors "paydash/internal/errors"
	"paydash/internal/ledger"
)

// SheetsSource reads the ledger through the Sheets API with a service
// account.
type SheetsSource struct {
	spreadsheetID   string
	gid             int64
	sheetName       string
	credentialsFile string
	options         []option.ClientOption
	logger          *slog.Logger
}

// NewSheetsSource builds a SheetsSource. When opts is empty the service
// account key is read from credentialsFile on every fetch.
func NewSheetsSource(spreadsheetID string, gid int64, sheetName, credentialsFile string, logger *slog.Logger, opts ...option.ClientOption) *SheetsSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsSource{
		spreadsheetID:   spreadsheetID,
		gid:             gid,
		sheetName:       sheetName,
		credentialsFile: credentialsFile,
		options:         opts,
		logger:          logger.With(slog.String("source", NameSheets)),
	}
}

func (s *SheetsSource) Name() string { return NameSheets }

func (s *SheetsSource) Remote() bool { return true }

// Fetch reads every value of the worksheet whose id matches the configured
// gid. Without a match it tries the configured title, then the first
// worksheet.
func (s *SheetsSource) Fetch(ctx context.Context) (ledger.RawTable, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return ledger.RawTable{Source: NameSheets}, err
	}

	title, err := s.resolveSheet(ctx, svc)
	if err != nil {
		return ledger.RawTable{Source: NameSheets}, err
	}

	resp, err := svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheetTitle(title)).Context(ctx).Do()
	if err != nil {
		return ledger.RawTable{Source: NameSheets}, apierrors.NewNetworkError("read sheet values", err).
			WithContext("sheet", title)
	}

	s.logger.DebugContext(ctx, "sheet values read",
		slog.String("sheet", title),
		slog.Int("rows", len(resp.Values)))

	return tableFromRows(NameSheets, resp.Values)
}

func (s *SheetsSource) service(ctx context.Context) (*sheets.Service, error) {
	opts := s.options
	if len(opts) == 0 {
		credentialsJSON, err := os.ReadFile(s.credentialsFile)
		if err != nil {
			return nil, apierrors.NewConfigError("read service account credentials", err).
				WithContext("path", s.credentialsFile)
		}
		opts = []option.ClientOption{
			option.WithCredentialsJSON(credentialsJSON),
			option.WithScopes(sheets.SpreadsheetsReadonlyScope),
		}
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apierrors.NewConfigError("create sheets service", err)
	}
	return svc, nil
}

func (s *SheetsSource) resolveSheet(ctx context.Context, svc *sheets.Service) (string, error) {
	ss, err := svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", apierrors.NewNetworkError("open spreadsheet", err).
			WithContext("spreadsheet_id", s.spreadsheetID)
	}

	var first, named string
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		if first == "" {
			first = sh.Properties.Title
		}
		if sh.Properties.SheetId == s.gid {
			return sh.Properties.Title, nil
		}
		if s.sheetName != "" && sh.Properties.Title == s.sheetName {
			named = sh.Properties.Title
		}
	}

	if named != "" {
		return named, nil
	}

	if first == "" {
		return "", fmt.Errorf("%s: spreadsheet has no worksheets: %w", NameSheets, ErrEmptySource)
	}

	s.logger.WarnContext(ctx, "worksheet gid not found, using first worksheet",
		slog.Int64("gid", s.gid),
		slog.String("sheet", first))
	return first, nil
}

// quoteSheetTitle turns a title into an A1 range covering the whole sheet.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
