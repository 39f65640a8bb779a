package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// placeholderColumn is returned for header text that cleans to nothing.
const placeholderColumn = "col"

// CleanColumnName regularizes header text: compatibility folding, trim,
// lower-case, drop anything outside [0-9a-z_ ], spaces become underscores.
// The result is never empty and cleaning it again returns it unchanged.
func CleanColumnName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(norm.NFKC.String(raw)))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}

	if b.Len() == 0 {
		return placeholderColumn
	}
	return b.String()
}

// ParseAmount converts a cell to a decimal. It never fails: missing, blank
// or malformed input yields zero. Currency symbols, thousands separators
// and whitespace are ignored; sign and fraction are kept as given.
func ParseAmount(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return boundedAmount(v)
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return boundedAmount(*v)
	case float64:
		return amountFromFloat(v)
	case float32:
		return amountFromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int8:
		return decimal.NewFromInt(int64(v))
	case int16:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return parseAmountText(strconv.FormatUint(uint64(v), 10))
	case uint8:
		return decimal.NewFromInt(int64(v))
	case uint16:
		return decimal.NewFromInt(int64(v))
	case uint32:
		return decimal.NewFromInt(int64(v))
	case uint64:
		return parseAmountText(strconv.FormatUint(v, 10))
	case bool:
		return decimal.Zero
	case json.Number:
		return parseAmountText(v.String())
	case string:
		return parseAmountText(v)
	case []byte:
		return parseAmountText(string(v))
	default:
		return parseAmountText(fmt.Sprint(v))
	}
}

func amountFromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func parseAmountText(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return boundedAmount(d)
}

// maxAmountExponent bounds the decimal exponent of a parsed amount. Text such
// as "1e400000000" is accepted by the decimal parser but any arithmetic on it
// rescales to a number with hundreds of millions of digits.
const maxAmountExponent = 64

func boundedAmount(d decimal.Decimal) decimal.Decimal {
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero
	}
	return d
}

// dateLayouts is tried in order. Day-first forms precede month-first forms
// so that 03/04/2024 reads as 3 April.
var dateLayouts = []string{
	// dd/mm/yyyy and friends
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2-1-2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",

	// mm/dd/yyyy, reached only when the day-first reading is impossible
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1-2-2006",
	"1/2/06",

	// named months
	"2 Jan 2006",
	"2-Jan-2006",
	"2/Jan/2006",
	"2-Jan-06",
	"2 January 2006",
	"2-January-2006",
	"2 Jan, 2006",
	"2 January, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006 15:04",
	"2-Jan-2006 15:04:05",
	"Jan 2006",
	"January 2006",

	// ISO and year-first
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006",
}

// ParseDate reads a cell as a calendar date, day first. Numbers, and text
// no layout accepts but that reads as a number, are taken as Excel serial
// dates, except whole numbers from 1000 to 9999 which are read as a year the
// same way the text "2024" is. It returns false when nothing yields a date.
func ParseDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case float64:
		return numericDate(v)
	case float32:
		return numericDate(float64(v))
	case int:
		return numericDate(float64(v))
	case int32:
		return numericDate(float64(v))
	case int64:
		return numericDate(float64(v))
	case bool:
		return time.Time{}, false
	case json.Number:
		return parseDateText(v.String())
	case string:
		return parseDateText(v)
	case []byte:
		return parseDateText(string(v))
	default:
		return parseDateText(fmt.Sprint(v))
	}
}

func parseDateText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return numericDate(f)
	}
	return time.Time{}, false
}

// numericDate reads a four-digit whole number as a year and anything else as
// an Excel serial date.
func numericDate(f float64) (time.Time, bool) {
	if f >= 1000 && f <= 9999 && f == math.Trunc(f) {
		return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return excelSerialDate(f)
}

// Excel's 1900 date system: serial 1 is 1900-01-01 and serial 60 is the
// nonexistent 1900-02-29. maxExcelSerial is 9999-12-31.
const maxExcelSerial = 2958465

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func excelSerialDate(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < 1 || f >= maxExcelSerial+1 {
		return time.Time{}, false
	}

	days := int(f)
	frac := f - float64(days)
	if days < 60 {
		days++
	}

	t := excelEpoch.AddDate(0, 0, days)
	if frac > 0 {
		t = t.Add(time.Duration(frac * float64(24*time.Hour))).Round(time.Second)
	}
	return t, true
}

// cellText renders a cell for text fields. Missing cells become "".
func cellText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format("2006-01-02")
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
