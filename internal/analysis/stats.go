package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSketchAccuracy is the relative accuracy of the approximate tail percentiles.
const DefaultSketchAccuracy = 0.01

// StatsOptions controls GroupedStatisticsWithOptions.
type StatsOptions struct {
	// GroupKey is one of device_class (default), osd_id, run_number.
	GroupKey string
	// SketchAccuracy for P95/P99; 0 uses DefaultSketchAccuracy.
	SketchAccuracy float64
}

// MetricSummary holds descriptive statistics of one metric within a group.
// Std is NaN when Count < 2. P95 and P99 are DDSketch estimates.
type MetricSummary struct {
	Count  int
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
	P95    float64
	P99    float64
}

// GroupStats is the summary of all samples sharing one group key value, across runs.
type GroupStats struct {
	Key         string
	Size        int
	BytesPerSec MetricSummary
	IOPS        MetricSummary
}

// RunTotal is the sum of a device class's metrics within a single run.
type RunTotal struct {
	DeviceClass    string
	RunNumber      int
	Devices        int
	BytesPerSecSum float64
	IOPSSum        float64
}

// GroupedStatistics computes per-group statistics of bytes_per_sec and iops.
// Groups are sorted by key (numerically for run_number).
func GroupedStatistics(t *Table, groupKey string) ([]GroupStats, error) {
	return GroupedStatisticsWithOptions(t, StatsOptions{GroupKey: groupKey})
}

// GroupedStatisticsWithOptions is GroupedStatistics with a configurable sketch accuracy.
func GroupedStatisticsWithOptions(t *Table, opt StatsOptions) ([]GroupStats, error) {
	keyOf, err := groupKeyFunc(opt.GroupKey)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	acc := opt.SketchAccuracy
	if acc <= 0 {
		acc = DefaultSketchAccuracy
	}

	type gAcc struct {
		bw   []float64
		iops []float64
	}
	groups := map[string]*gAcc{}
	var keys []string
	for _, s := range t.rows {
		k := keyOf(s)
		ga := groups[k]
		if ga == nil {
			ga = &gAcc{}
			groups[k] = ga
			keys = append(keys, k)
		}
		ga.bw = append(ga.bw, s.BytesPerSec)
		ga.iops = append(ga.iops, s.IOPS)
	}
	sortGroupKeys(keys, strings.EqualFold(strings.TrimSpace(opt.GroupKey), KeyRunNumber))

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		ga := groups[k]
		bw, err := summarize(ga.bw, acc)
		if err != nil {
			return nil, fmt.Errorf("group %s bytes_per_sec: %w", k, err)
		}
		io, err := summarize(ga.iops, acc)
		if err != nil {
			return nil, fmt.Errorf("group %s iops: %w", k, err)
		}
		out = append(out, GroupStats{Key: k, Size: len(ga.bw), BytesPerSec: bw, IOPS: io})
	}
	return out, nil
}

func sortGroupKeys(keys []string, numeric bool) {
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
}

func summarize(vals []float64, accuracy float64) (MetricSummary, error) {
	s := MetricSummary{Count: len(vals), Std: math.NaN()}
	if len(vals) == 0 {
		return s, nil
	}
	s.Mean = stat.Mean(vals, nil)
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	s.Min = floats.Min(vals)
	s.Max = floats.Max(vals)
	s.Median = median(vals)

	sk, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return s, fmt.Errorf("new sketch: %w", err)
	}
	for _, v := range vals {
		if err := sk.Add(v); err != nil {
			return s, fmt.Errorf("sketch add: %w", err)
		}
	}
	if s.P95, err = sk.GetValueAtQuantile(0.95); err != nil {
		return s, fmt.Errorf("sketch p95: %w", err)
	}
	if s.P99, err = sk.GetValueAtQuantile(0.99); err != nil {
		return s, fmt.Errorf("sketch p99: %w", err)
	}
	return s, nil
}

// RunTotals sums bytes_per_sec and iops for every (device_class, run_number)
// pair present in t. Records follow class first-seen order, then ascending run.
func RunTotals(t *Table) []RunTotal {
	type key struct {
		class string
		run   int
	}
	sums := map[key]*RunTotal{}
	for _, s := range t.Rows() {
		k := key{s.DeviceClass, s.RunNumber}
		rt := sums[k]
		if rt == nil {
			rt = &RunTotal{DeviceClass: s.DeviceClass, RunNumber: s.RunNumber}
			sums[k] = rt
		}
		rt.Devices++
		rt.BytesPerSecSum += s.BytesPerSec
		rt.IOPSSum += s.IOPS
	}
	out := make([]RunTotal, 0, len(sums))
	for _, class := range t.DeviceClasses() {
		for _, run := range t.RunNumbers() {
			if rt, ok := sums[key{class, run}]; ok {
				out = append(out, *rt)
			}
		}
	}
	return out
}

// median returns the middle value, averaging the two central values for even counts.
func median(vals []float64) float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return quantile(cp, 0.5)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
