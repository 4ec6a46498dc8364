package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// s builds a sample; metrics are (bytes_per_sec, iops).
func s(class, osd string, run int, bw, iops float64) Sample {
	return Sample{
		DeviceClass: class,
		OSDID:       osd,
		RunNumber:   run,
		Timestamp:   time.Date(2024, 3, 1, 12, run, 0, 0, time.UTC),
		BytesPerSec: bw,
		IOPS:        iops,
	}
}

func mustTable(t *testing.T, rows ...Sample) *Table {
	t.Helper()
	tbl, err := NewTable(rows)
	require.NoError(t, err)
	return tbl
}

func TestNewTableAccessors(t *testing.T) {
	tbl := mustTable(t,
		s("ssd", "3", 2, 10, 1),
		s("hdd", "1", 1, 20, 2),
		s("ssd", "4", 1, 30, 3),
		s("hdd", "1", 3, 40, 4),
		s("ssd", "3", 1, 50, 5),
	)
	assert.Equal(t, 5, tbl.Len())
	assert.Equal(t, []string{"ssd", "hdd"}, tbl.DeviceClasses())
	assert.Equal(t, []string{"3", "1", "4"}, tbl.OSDs())
	assert.Equal(t, []int{1, 2, 3}, tbl.RunNumbers())
	assert.Equal(t, "hdd", tbl.At(1).DeviceClass)

	ssd := tbl.ByClass("ssd")
	assert.Equal(t, 3, ssd.Len())
	assert.Equal(t, []string{"3", "4"}, ssd.OSDs())

	rows := tbl.Rows()
	rows[0].IOPS = 999
	assert.Equal(t, 1.0, tbl.At(0).IOPS, "Rows must return a copy")
}

func TestNewTableCopiesInput(t *testing.T) {
	in := []Sample{s("hdd", "1", 1, 10, 1)}
	tbl := mustTable(t, in...)
	in[0].IOPS = 42
	assert.Equal(t, 1.0, tbl.At(0).IOPS)
}

func TestNewTableRejectsInvariantViolations(t *testing.T) {
	cases := []struct {
		name string
		rows []Sample
		row  int
	}{
		{"empty class", []Sample{s("", "1", 1, 1, 1)}, 0},
		{"empty osd", []Sample{s("hdd", " ", 1, 1, 1)}, 0},
		{"negative iops", []Sample{s("hdd", "1", 1, 1, -1)}, 0},
		{"nan bandwidth", []Sample{s("hdd", "1", 1, math.NaN(), 1)}, 0},
		{"inf iops", []Sample{s("hdd", "1", 1, 1, math.Inf(1))}, 0},
		{"duplicate run", []Sample{s("hdd", "1", 1, 1, 1), s("hdd", "1", 1, 2, 2)}, 1},
		{"two classes", []Sample{s("hdd", "1", 1, 1, 1), s("ssd", "1", 2, 2, 2)}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(tc.rows)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSample))
			var se *SampleError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.row, se.Row)
		})
	}
}

func TestEmptyAndNilTable(t *testing.T) {
	tbl := mustTable(t)
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.DeviceClasses())
	assert.Empty(t, tbl.RunNumbers())

	var nilTbl *Table
	assert.Equal(t, 0, nilTbl.Len())
	assert.Empty(t, nilTbl.Rows())
	assert.Equal(t, 0, nilTbl.Filter(func(Sample) bool { return true }).Len())
}

func TestValidGroupKey(t *testing.T) {
	for _, k := range []string{"", "device_class", "OSD_ID", " run_number "} {
		assert.True(t, ValidGroupKey(k), k)
	}
	for _, k := range []string{"iops", "bytes_per_sec", "timestamp", "host"} {
		assert.False(t, ValidGroupKey(k), k)
	}
}
