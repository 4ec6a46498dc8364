package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column names understood by loaders and accepted as group keys where categorical.
const (
	KeyDeviceClass = "device_class"
	KeyOSDID       = "osd_id"
	KeyRunNumber   = "run_number"
	KeyTimestamp   = "timestamp"
	KeyBytesPerSec = "bytes_per_sec"
	KeyIOPS        = "iops"
)

// Sample is one benchmark measurement of a single OSD in a single run.
type Sample struct {
	DeviceClass string    `json:"device_class" yaml:"device_class"`
	OSDID       string    `json:"osd_id" yaml:"osd_id"`
	RunNumber   int       `json:"run_number" yaml:"run_number"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	BytesPerSec float64   `json:"bytes_per_sec" yaml:"bytes_per_sec"`
	IOPS        float64   `json:"iops" yaml:"iops"`
}

// Table is an immutable, ordered set of samples. Build it with NewTable.
type Table struct {
	rows []Sample
}

// NewTable copies rows into a Table after checking the dataset invariants:
// non-empty identifiers, finite non-negative metrics, one sample per OSD per
// (class, run), and each OSD in exactly one device class.
func NewTable(rows []Sample) (*Table, error) {
	cp := make([]Sample, len(rows))
	copy(cp, rows)

	type runKey struct {
		class string
		osd   string
		run   int
	}
	seen := make(map[runKey]struct{}, len(cp))
	classOf := make(map[string]string)
	for i, s := range cp {
		if strings.TrimSpace(s.DeviceClass) == "" {
			return nil, &SampleError{Row: i, Reason: "empty device_class"}
		}
		if strings.TrimSpace(s.OSDID) == "" {
			return nil, &SampleError{Row: i, Reason: "empty osd_id"}
		}
		if !validMetric(s.BytesPerSec) {
			return nil, &SampleError{Row: i, Reason: fmt.Sprintf("bytes_per_sec %v is not a finite non-negative number", s.BytesPerSec)}
		}
		if !validMetric(s.IOPS) {
			return nil, &SampleError{Row: i, Reason: fmt.Sprintf("iops %v is not a finite non-negative number", s.IOPS)}
		}
		if c, ok := classOf[s.OSDID]; ok && c != s.DeviceClass {
			return nil, &SampleError{Row: i, Reason: fmt.Sprintf("osd %s appears in device classes %q and %q", s.OSDID, c, s.DeviceClass)}
		}
		classOf[s.OSDID] = s.DeviceClass
		k := runKey{class: s.DeviceClass, osd: s.OSDID, run: s.RunNumber}
		if _, dup := seen[k]; dup {
			return nil, &SampleError{Row: i, Reason: fmt.Sprintf("osd %s has more than one sample in run %d", s.OSDID, s.RunNumber)}
		}
		seen[k] = struct{}{}
	}
	return &Table{rows: cp}, nil
}

func validMetric(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Len returns the number of samples.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// At returns the i-th sample.
func (t *Table) At(i int) Sample { return t.rows[i] }

// Rows returns a copy of all samples in input order.
func (t *Table) Rows() []Sample {
	out := make([]Sample, t.Len())
	if t != nil {
		copy(out, t.rows)
	}
	return out
}

// Filter returns a new table holding the samples for which keep returns true.
// The result shares no state with t.
func (t *Table) Filter(keep func(Sample) bool) *Table {
	out := &Table{}
	if t == nil {
		return out
	}
	for _, s := range t.rows {
		if keep(s) {
			out.rows = append(out.rows, s)
		}
	}
	return out
}

// ByClass is Filter restricted to a single device class.
func (t *Table) ByClass(class string) *Table {
	return t.Filter(func(s Sample) bool { return s.DeviceClass == class })
}

// DeviceClasses lists distinct device classes in first-seen order.
func (t *Table) DeviceClasses() []string {
	return t.distinct(func(s Sample) string { return s.DeviceClass })
}

// OSDs lists distinct OSD ids in first-seen order.
func (t *Table) OSDs() []string {
	return t.distinct(func(s Sample) string { return s.OSDID })
}

// RunNumbers lists distinct run numbers in ascending order.
func (t *Table) RunNumbers() []int {
	if t == nil {
		return nil
	}
	set := make(map[int]struct{})
	for _, s := range t.rows {
		set[s.RunNumber] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

func (t *Table) distinct(key func(Sample) string) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, s := range t.rows {
		k := key(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// groupKeyFunc resolves a group key name to an accessor. Only categorical
// attributes qualify; metric columns and timestamps are rejected.
func groupKeyFunc(key string) (func(Sample) string, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", KeyDeviceClass:
		return func(s Sample) string { return s.DeviceClass }, nil
	case KeyOSDID:
		return func(s Sample) string { return s.OSDID }, nil
	case KeyRunNumber:
		return func(s Sample) string { return strconv.Itoa(s.RunNumber) }, nil
	default:
		return nil, &GroupKeyError{Key: key}
	}
}

// ValidGroupKey reports whether key can be passed to GroupedStatistics.
func ValidGroupKey(key string) bool {
	_, err := groupKeyFunc(key)
	return err == nil
}
