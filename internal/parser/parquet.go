package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// SampleRow is the Parquet layout written by WriteParquet. Timestamp is unix
// milliseconds; zero means unknown.
type SampleRow struct {
	DeviceClass string  `parquet:"device_class,dict,zstd"`
	OSDID       string  `parquet:"osd_id,dict,zstd"`
	RunNumber   int64   `parquet:"run_number"`
	TimestampMs int64   `parquet:"timestamp"`
	BytesPerSec float64 `parquet:"bytes_per_sec"`
	IOPS        float64 `parquet:"iops"`
}

// SampleToRow converts a Sample to a SampleRow.
func SampleToRow(s analysis.Sample) SampleRow {
	r := SampleRow{
		DeviceClass: s.DeviceClass,
		OSDID:       s.OSDID,
		RunNumber:   int64(s.RunNumber),
		BytesPerSec: s.BytesPerSec,
		IOPS:        s.IOPS,
	}
	if !s.Timestamp.IsZero() {
		r.TimestampMs = s.Timestamp.UnixMilli()
	}
	return r
}

type parquetLoader struct{}

func (parquetLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".parquet")
}

func (parquetLoader) Load(path string, _ Options) ([]analysis.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}
	pf, err := parquet.OpenFile(f, st.Size(), parquet.ReadBufferSize(1<<20))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return readParquetSamples(pf)
}

// readParquetSamples maps leaf columns by name, so files written by other
// tools load as long as the sample columns are present. Cells are rendered as
// strings and go through the same conversion as CSV records.
func readParquetSamples(pf *parquet.File) ([]analysis.Sample, error) {
	schema := pf.Schema()
	paths := schema.Columns()
	header := make([]string, len(paths))
	for i, p := range paths {
		header[i] = strings.Join(p, ".")
	}
	ci, err := indexHeader(header)
	if err != nil {
		return nil, err
	}
	tsCol, tsUnit := -1, time.Millisecond
	if i, ok := ci[analysis.KeyTimestamp]; ok {
		if leaf, ok := schema.Lookup(paths[i]...); ok {
			tsCol = leaf.ColumnIndex
			tsUnit = timestampUnit(leaf.Node.Type().LogicalType())
		}
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	out := make([]analysis.Sample, 0, pf.NumRows())
	buf := make([]parquet.Row, 256)
	row := 0
	for {
		n, err := reader.ReadRows(buf)
		for _, r := range buf[:n] {
			row++
			rec := make([]string, len(header))
			for _, v := range r {
				c := v.Column()
				if c < 0 || c >= len(rec) {
					continue
				}
				if c == tsCol {
					rec[c] = timestampCell(v, tsUnit)
				} else {
					rec[c] = valueCell(v)
				}
			}
			s, serr := ci.sample(rec, row)
			if serr != nil {
				return nil, serr
			}
			out = append(out, s)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// timestampUnit returns the tick size of an integer timestamp column. Plain
// integers without a TIMESTAMP annotation are read as milliseconds.
func timestampUnit(lt *format.LogicalType) time.Duration {
	if lt == nil || lt.Timestamp == nil {
		return time.Millisecond
	}
	switch u := lt.Timestamp.Unit; {
	case u.Micros != nil:
		return time.Microsecond
	case u.Nanos != nil:
		return time.Nanosecond
	default:
		return time.Millisecond
	}
}

func timestampCell(v parquet.Value, unit time.Duration) string {
	if v.IsNull() {
		return ""
	}
	var ticks int64
	switch v.Kind() {
	case parquet.Int64:
		ticks = v.Int64()
	case parquet.Int32:
		ticks = int64(v.Int32())
	default:
		return valueCell(v)
	}
	if ticks == 0 {
		return ""
	}
	return time.Unix(0, ticks*int64(unit)).UTC().Format(time.RFC3339Nano)
}

func valueCell(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// WriteParquet writes samples to path with zstd compression, creating parent directories.
func WriteParquet(path string, samples []analysis.Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	w := parquet.NewGenericWriter[SampleRow](f, parquet.Compression(&parquet.Zstd))
	rows := make([]SampleRow, len(samples))
	for i, s := range samples {
		rows[i] = SampleToRow(s)
	}
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}
