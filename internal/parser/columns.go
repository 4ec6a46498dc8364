package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
)

// ErrMissingColumn indicates the header lacks a required sample column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{
	analysis.KeyDeviceClass,
	analysis.KeyOSDID,
	analysis.KeyRunNumber,
	analysis.KeyBytesPerSec,
	analysis.KeyIOPS,
}

// RowError reports a cell that could not be converted. Row is 1-based and
// counts data rows after the header.
type RowError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: column %s: cannot parse %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// columnIndex maps lower-cased column names to their position in a record.
type columnIndex map[string]int

// indexHeader locates the sample columns; extra columns are ignored and the
// timestamp column is optional.
func indexHeader(header []string) (columnIndex, error) {
	ci := columnIndex{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := ci[name]; !dup {
			ci[name] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := ci[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return ci, nil
}

func (ci columnIndex) cell(rec []string, name string) string {
	idx, ok := ci[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// sample converts one record; row is used for error messages only.
func (ci columnIndex) sample(rec []string, row int) (analysis.Sample, error) {
	s := analysis.Sample{
		DeviceClass: ci.cell(rec, analysis.KeyDeviceClass),
		OSDID:       normalizeOSDID(ci.cell(rec, analysis.KeyOSDID)),
	}
	runRaw := ci.cell(rec, analysis.KeyRunNumber)
	run, err := parseRunNumber(runRaw)
	if err != nil {
		return s, &RowError{Row: row, Column: analysis.KeyRunNumber, Value: runRaw, Err: err}
	}
	s.RunNumber = run

	bwRaw := ci.cell(rec, analysis.KeyBytesPerSec)
	if s.BytesPerSec, err = parseNumeric(bwRaw); err != nil {
		return s, &RowError{Row: row, Column: analysis.KeyBytesPerSec, Value: bwRaw, Err: err}
	}
	iopsRaw := ci.cell(rec, analysis.KeyIOPS)
	if s.IOPS, err = parseNumeric(iopsRaw); err != nil {
		return s, &RowError{Row: row, Column: analysis.KeyIOPS, Value: iopsRaw, Err: err}
	}
	if tsRaw := ci.cell(rec, analysis.KeyTimestamp); tsRaw != "" {
		ts, ok := parseTimeMaybe(tsRaw)
		if !ok {
			return s, &RowError{Row: row, Column: analysis.KeyTimestamp, Value: tsRaw, Err: errors.New("unrecognized time layout")}
		}
		s.Timestamp = ts
	}
	return s, nil
}

// normalizeOSDID strips a trailing ".0" that spreadsheet exports add to integer ids.
func normalizeOSDID(s string) string {
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

func parseRunNumber(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.New("not an integer")
	}
	return int(f), nil
}

func parseNumeric(s string) (float64, error) {
	raw := strings.ReplaceAll(s, " ", "")
	raw = strings.ReplaceAll(raw, "_", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseFloat(raw, 64)
}

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05",
		"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", "2006/01/02",
		"1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	// XLSX stores dates as serial day numbers.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f < 2958466 {
		days := math.Floor(f)
		frac := time.Duration((f - days) * float64(24*time.Hour))
		return excelEpoch.AddDate(0, 0, int(days)).Add(frac).Round(time.Second), true
	}
	return time.Time{}, false
}
