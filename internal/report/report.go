// Package report assembles analysis results into a Report and renders it as
// text, Markdown, JSON, YAML or Prometheus textfile metrics.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// Options controls Build.
type Options struct {
	GroupBy        string
	ThresholdPct   float64
	Parallel       bool
	SketchAccuracy float64
	// Now overrides the report clock; nil uses time.Now.
	Now func() time.Time
}

// OSDDetail describes a flagged OSD with its averages over all of its samples.
type OSDDetail struct {
	DeviceClass         string
	OSDID               string
	AvgIOPS             float64
	AvgBytesPerSec      float64
	UnderperformingRuns int
	ParticipatedRuns    int
	TotalRuns           int
}

// Report is the full result of analyzing one input.
type Report struct {
	ID            string
	GeneratedAt   time.Time
	Input         string
	TotalOSDs     int
	DeviceClasses []string
	Runs          []int
	ThresholdPct  float64
	GroupBy       string

	Stats    []analysis.GroupStats
	Totals   []analysis.RunTotal
	Outliers *analysis.OutlierResult
	Details  []OSDDetail
}

// Build runs the aggregator and the outlier detector over t.
func Build(ctx context.Context, t *analysis.Table, input string, opt Options) (*Report, error) {
	groupBy := strings.ToLower(strings.TrimSpace(opt.GroupBy))
	if groupBy == "" {
		groupBy = analysis.KeyDeviceClass
	}
	stats, err := analysis.GroupedStatisticsWithOptions(t, analysis.StatsOptions{
		GroupKey:       groupBy,
		SketchAccuracy: opt.SketchAccuracy,
	})
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	out, err := analysis.DetectOutliersContext(ctx, t, analysis.DetectOptions{
		ThresholdPct: opt.ThresholdPct,
		Parallel:     opt.Parallel,
	})
	if err != nil {
		return nil, fmt.Errorf("outliers: %w", err)
	}

	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	r := &Report{
		ID:            uuid.NewString(),
		GeneratedAt:   now(),
		Input:         input,
		TotalOSDs:     len(t.OSDs()),
		DeviceClasses: t.DeviceClasses(),
		Runs:          t.RunNumbers(),
		ThresholdPct:  opt.ThresholdPct,
		GroupBy:       groupBy,
		Stats:         stats,
		Totals:        analysis.RunTotals(t),
		Outliers:      out,
	}
	for _, f := range out.Findings {
		osd := t.Filter(func(s analysis.Sample) bool { return s.OSDID == f.OSDID })
		var iops, bw []float64
		for _, s := range osd.Rows() {
			iops = append(iops, s.IOPS)
			bw = append(bw, s.BytesPerSec)
		}
		r.Details = append(r.Details, OSDDetail{
			DeviceClass:         f.DeviceClass,
			OSDID:               f.OSDID,
			AvgIOPS:             stat.Mean(iops, nil),
			AvgBytesPerSec:      stat.Mean(bw, nil),
			UnderperformingRuns: f.UnderperformingRuns,
			ParticipatedRuns:    f.ParticipatedRuns,
			TotalRuns:           f.TotalRuns,
		})
	}
	return r, nil
}

// DetailsFor returns the flagged OSD details of one class, in detection order.
func (r *Report) DetailsFor(class string) []OSDDetail {
	var out []OSDDetail
	for _, d := range r.Details {
		if d.DeviceClass == class {
			out = append(out, d)
		}
	}
	return out
}

// TotalsFor returns the run totals of one class in ascending run order.
func (r *Report) TotalsFor(class string) []analysis.RunTotal {
	var out []analysis.RunTotal
	for _, rt := range r.Totals {
		if rt.DeviceClass == class {
			out = append(out, rt)
		}
	}
	return out
}

// groupTitle names a group key for section titles.
func groupTitle(key string) string {
	switch key {
	case analysis.KeyOSDID:
		return "OSD"
	case analysis.KeyRunNumber:
		return "Run"
	default:
		return "Device Class"
	}
}
