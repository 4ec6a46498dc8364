package report

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/osdperf-cli/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// exporter holds the gauges published for one report.
type exporter struct {
	runBandwidth   *prometheus.GaugeVec
	runIOPS        *prometheus.GaugeVec
	groupBandwidth *prometheus.GaugeVec
	groupIOPS      *prometheus.GaugeVec
	outliers       *prometheus.GaugeVec
	slowRuns       *prometheus.GaugeVec
	runs           prometheus.Gauge
	threshold      prometheus.Gauge
	generated      prometheus.Gauge
}

func newExporter() *exporter {
	return &exporter{
		runBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_run_bytes_per_second",
			Help: "Summed throughput of a device class within one benchmark run.",
		}, []string{"device_class", "run"}),
		runIOPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_run_iops",
			Help: "Summed IOPS of a device class within one benchmark run.",
		}, []string{"device_class", "run"}),
		groupBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_group_median_bytes_per_second",
			Help: "Median throughput of a group across all runs.",
		}, []string{"group_by", "group"}),
		groupIOPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_group_median_iops",
			Help: "Median IOPS of a group across all runs.",
		}, []string{"group_by", "group"}),
		outliers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_outlier_osds",
			Help: "Number of OSDs flagged as chronically slow per device class.",
		}, []string{"device_class"}),
		slowRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "osdperf_osd_underperforming_runs",
			Help: "Runs in which a flagged OSD fell below the class median threshold.",
		}, []string{"device_class", "osd"}),
		runs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osdperf_runs",
			Help: "Distinct benchmark runs in the analyzed input.",
		}),
		threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osdperf_threshold_percent",
			Help: "Percentage below the peer median used for outlier detection.",
		}),
		generated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "osdperf_report_timestamp_seconds",
			Help: "Unix time the report was generated.",
		}),
	}
}

func (e *exporter) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		e.runBandwidth, e.runIOPS, e.groupBandwidth, e.groupIOPS,
		e.outliers, e.slowRuns, e.runs, e.threshold, e.generated,
	}
}

func (e *exporter) observe(r *Report) {
	for _, rt := range r.Totals {
		run := strconv.Itoa(rt.RunNumber)
		e.runBandwidth.WithLabelValues(rt.DeviceClass, run).Set(rt.BytesPerSecSum)
		e.runIOPS.WithLabelValues(rt.DeviceClass, run).Set(rt.IOPSSum)
	}
	for _, g := range r.Stats {
		e.groupBandwidth.WithLabelValues(r.GroupBy, g.Key).Set(g.BytesPerSec.Median)
		e.groupIOPS.WithLabelValues(r.GroupBy, g.Key).Set(g.IOPS.Median)
	}
	for _, class := range r.DeviceClasses {
		e.outliers.WithLabelValues(class).Set(float64(len(r.Outliers.ByClass[class])))
	}
	for _, d := range r.Details {
		e.slowRuns.WithLabelValues(d.DeviceClass, d.OSDID).Set(float64(d.UnderperformingRuns))
	}
	e.runs.Set(float64(len(r.Runs)))
	e.threshold.Set(r.ThresholdPct)
	e.generated.Set(float64(r.GeneratedAt.Unix()))
}

// Registry returns a fresh registry holding the report's gauges.
func Registry(r *Report) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	e := newExporter()
	for _, c := range e.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	e.observe(r)
	return reg, nil
}

// WriteTextfile writes the report's gauges in the Prometheus text format, for
// pickup by the node_exporter textfile collector.
func WriteTextfile(path string, r *Report) error {
	reg, err := Registry(r)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
