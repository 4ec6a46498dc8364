package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/KaramelBytes/osdperf-cli/internal/utils"
	"gopkg.in/yaml.v3"
)

// number encodes NaN and infinities as null.
type number float64

func (n number) valid() bool { return !math.IsNaN(float64(n)) && !math.IsInf(float64(n), 0) }

func (n number) MarshalJSON() ([]byte, error) {
	if !n.valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

func (n number) MarshalYAML() (interface{}, error) {
	if !n.valid() {
		return nil, nil
	}
	return float64(n), nil
}

type metricDoc struct {
	Count  int    `json:"count" yaml:"count"`
	Mean   number `json:"mean" yaml:"mean"`
	Median number `json:"median" yaml:"median"`
	Std    number `json:"std" yaml:"std"`
	Min    number `json:"min" yaml:"min"`
	Max    number `json:"max" yaml:"max"`
	P95    number `json:"p95" yaml:"p95"`
	P99    number `json:"p99" yaml:"p99"`
}

type groupDoc struct {
	Key         string    `json:"key" yaml:"key"`
	Size        int       `json:"size" yaml:"size"`
	BytesPerSec metricDoc `json:"bytes_per_sec" yaml:"bytes_per_sec"`
	IOPS        metricDoc `json:"iops" yaml:"iops"`
}

type runTotalDoc struct {
	DeviceClass string `json:"device_class" yaml:"device_class"`
	RunNumber   int    `json:"run_number" yaml:"run_number"`
	Devices     int    `json:"devices" yaml:"devices"`
	BytesPerSec number `json:"bytes_per_sec" yaml:"bytes_per_sec"`
	IOPS        number `json:"iops" yaml:"iops"`
}

type findingDoc struct {
	DeviceClass         string `json:"device_class" yaml:"device_class"`
	OSDID               string `json:"osd_id" yaml:"osd_id"`
	AvgIOPS             number `json:"avg_iops" yaml:"avg_iops"`
	AvgBytesPerSec      number `json:"avg_bytes_per_sec" yaml:"avg_bytes_per_sec"`
	UnderperformingRuns int    `json:"underperforming_runs" yaml:"underperforming_runs"`
	ParticipatedRuns    int    `json:"participated_runs" yaml:"participated_runs"`
	TotalRuns           int    `json:"total_runs" yaml:"total_runs"`
}

type document struct {
	ID            string              `json:"id" yaml:"id"`
	GeneratedAt   time.Time           `json:"generated_at" yaml:"generated_at"`
	Input         string              `json:"input" yaml:"input"`
	TotalOSDs     int                 `json:"total_osds" yaml:"total_osds"`
	DeviceClasses []string            `json:"device_classes" yaml:"device_classes"`
	Runs          []int               `json:"runs" yaml:"runs"`
	ThresholdPct  number              `json:"threshold_pct" yaml:"threshold_pct"`
	GroupBy       string              `json:"group_by" yaml:"group_by"`
	Statistics    []groupDoc          `json:"statistics" yaml:"statistics"`
	RunTotals     []runTotalDoc       `json:"run_totals" yaml:"run_totals"`
	Outliers      map[string][]string `json:"outliers" yaml:"outliers"`
	Findings      []findingDoc        `json:"findings" yaml:"findings"`
}

func metric(m analysis.MetricSummary) metricDoc {
	return metricDoc{
		Count: m.Count, Mean: number(m.Mean), Median: number(m.Median), Std: number(m.Std),
		Min: number(m.Min), Max: number(m.Max), P95: number(m.P95), P99: number(m.P99),
	}
}

func (r *Report) document() document {
	d := document{
		ID:            r.ID,
		GeneratedAt:   r.GeneratedAt,
		Input:         r.Input,
		TotalOSDs:     r.TotalOSDs,
		DeviceClasses: r.DeviceClasses,
		Runs:          r.Runs,
		ThresholdPct:  number(r.ThresholdPct),
		GroupBy:       r.GroupBy,
		Statistics:    make([]groupDoc, 0, len(r.Stats)),
		RunTotals:     make([]runTotalDoc, 0, len(r.Totals)),
		Outliers:      map[string][]string{},
		Findings:      make([]findingDoc, 0, len(r.Details)),
	}
	for _, g := range r.Stats {
		d.Statistics = append(d.Statistics, groupDoc{Key: g.Key, Size: g.Size, BytesPerSec: metric(g.BytesPerSec), IOPS: metric(g.IOPS)})
	}
	for _, rt := range r.Totals {
		d.RunTotals = append(d.RunTotals, runTotalDoc{
			DeviceClass: rt.DeviceClass, RunNumber: rt.RunNumber, Devices: rt.Devices,
			BytesPerSec: number(rt.BytesPerSecSum), IOPS: number(rt.IOPSSum),
		})
	}
	if r.Outliers != nil {
		for class, osds := range r.Outliers.ByClass {
			d.Outliers[class] = osds
		}
	}
	for _, x := range r.Details {
		d.Findings = append(d.Findings, findingDoc{
			DeviceClass: x.DeviceClass, OSDID: x.OSDID,
			AvgIOPS: number(x.AvgIOPS), AvgBytesPerSec: number(x.AvgBytesPerSec),
			UnderperformingRuns: x.UnderperformingRuns, ParticipatedRuns: x.ParticipatedRuns, TotalRuns: x.TotalRuns,
		})
	}
	return d
}

// JSON renders the report as indented JSON. Undefined statistics are null.
func (r *Report) JSON() ([]byte, error) {
	return utils.PrettyJSON(r.document())
}

// YAML renders the report as YAML. Undefined statistics are null.
func (r *Report) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r.document()); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Render renders r in the named format: text, markdown, json or yaml.
func Render(r *Report, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		var buf bytes.Buffer
		if err := WriteText(&buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "markdown", "md":
		return []byte(r.Markdown()), nil
	case "json":
		b, err := r.JSON()
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "yaml", "yml":
		return r.YAML()
	default:
		return nil, fmt.Errorf("unsupported format: %s (use text, markdown, json or yaml)", format)
	}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md":
		return ".md"
	case "json":
		return ".json"
	case "yaml", "yml":
		return ".yaml"
	default:
		return ".txt"
	}
}
