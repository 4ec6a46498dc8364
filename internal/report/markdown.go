package report

import (
	"fmt"
	"strconv"
	"strings"
)

// Markdown renders the report as Markdown.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Ceph OSD Performance Analysis\n\n")
	b.WriteString(fmt.Sprintf("- Analysis date: %s\n", r.GeneratedAt.Format(dateLayout)))
	b.WriteString(fmt.Sprintf("- Input file: `%s`\n", r.Input))
	b.WriteString(fmt.Sprintf("- Report ID: `%s`\n", r.ID))
	b.WriteString(fmt.Sprintf("- OSDs: %d, device classes: %s, runs: %d\n",
		r.TotalOSDs, strings.Join(r.DeviceClasses, ", "), len(r.Runs)))

	b.WriteString(fmt.Sprintf("\n## Statistics by %s\n\n", groupTitle(r.GroupBy)))
	b.WriteString(fmt.Sprintf("| %s | n | bw mean | bw median | bw std | bw p95 | bw p99 | iops mean | iops median | iops std | iops p95 | iops p99 |\n", r.GroupBy))
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, g := range r.Stats {
		bw, ops := g.BytesPerSec, g.IOPS
		b.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			cellSafe(g.Key), g.Size,
			HumanBytesPerSec(bw.Mean), HumanBytesPerSec(bw.Median), HumanBytesPerSec(bw.Std),
			HumanBytesPerSec(bw.P95), HumanBytesPerSec(bw.P99),
			FormatIOPS(ops.Mean), FormatIOPS(ops.Median), FormatIOPS(ops.Std),
			FormatIOPS(ops.P95), FormatIOPS(ops.P99)))
	}

	b.WriteString("\n## Aggregate performance by run\n")
	for _, class := range r.DeviceClasses {
		b.WriteString(fmt.Sprintf("\n### %s\n\n", cellSafe(class)))
		b.WriteString("| run | devices | total bandwidth | total iops |\n|---:|---:|---:|---:|\n")
		for _, rt := range r.TotalsFor(class) {
			b.WriteString(fmt.Sprintf("| %d | %d | %s | %s |\n",
				rt.RunNumber, rt.Devices, HumanBytesPerSec(rt.BytesPerSecSum), FormatIOPS(rt.IOPSSum)))
		}
	}

	b.WriteString("\n## Potential performance issues\n\n")
	b.WriteString(fmt.Sprintf("Threshold: %s%% below the per-run class median.\n\n",
		strconv.FormatFloat(r.ThresholdPct, 'f', -1, 64)))
	if r.Outliers.Empty() {
		b.WriteString("No significant performance outliers detected.\n")
		return b.String()
	}
	b.WriteString("| class | osd | avg iops | avg throughput | slow runs |\n|---|---|---:|---:|---:|\n")
	for _, d := range r.Details {
		b.WriteString(fmt.Sprintf("| %s | osd.%s | %.2f | %s | %d/%d |\n",
			cellSafe(d.DeviceClass), cellSafe(d.OSDID), d.AvgIOPS, HumanBytesPerSec(d.AvgBytesPerSec),
			d.UnderperformingRuns, d.TotalRuns))
	}
	return b.String()
}

func cellSafe(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
