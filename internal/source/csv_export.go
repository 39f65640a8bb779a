package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apierrors "paydash/internal/errors"
	"paydash/internal/ledger"
)

// DefaultExportBaseURL is the host of the public CSV export endpoint.
const DefaultExportBaseURL = "https://docs.google.com"

// CSVExportSource downloads the published CSV export of one worksheet.
type CSVExportSource struct {
	baseURL       string
	spreadsheetID string
	gid           int64
	client        *http.Client
}

// NewCSVExportSource builds a CSVExportSource. A nil client uses
// http.DefaultClient; the fetch deadline comes from the context.
func NewCSVExportSource(baseURL, spreadsheetID string, gid int64, client *http.Client) *CSVExportSource {
	if baseURL == "" {
		baseURL = DefaultExportBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &CSVExportSource{
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		gid:           gid,
		client:        client,
	}
}

func (s *CSVExportSource) Name() string { return NameCSVExport }

func (s *CSVExportSource) Remote() bool { return true }

// URL returns the export address.
func (s *CSVExportSource) URL() string {
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv&gid=%d",
		s.baseURL, url.PathEscape(s.spreadsheetID), s.gid)
}

func (s *CSVExportSource) Fetch(ctx context.Context) (ledger.RawTable, error) {
	empty := ledger.RawTable{Source: NameCSVExport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(), nil)
	if err != nil {
		return empty, fmt.Errorf("%s: build request: %w", NameCSVExport, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return empty, apierrors.NewNetworkError("download csv export", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return empty, apierrors.NewNetworkError(
			fmt.Sprintf("csv export returned status %d", resp.StatusCode), nil).
			WithContext("status", resp.StatusCode)
	}

	// A private sheet redirects to a sign-in page served as HTML with 200.
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return empty, fmt.Errorf("%s: %w", NameCSVExport, ErrNotShared)
	}

	rows, err := readCSV(resp.Body)
	if err != nil {
		return empty, apierrors.NewParsingError("parse csv export", err)
	}
	return tableFromRows(NameCSVExport, stringRows(rows))
}

// readCSV decodes UTF-8 or BOM-marked UTF-16 input and tolerates ragged rows.
func readCSV(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}
