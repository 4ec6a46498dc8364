package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/olekukonko/tablewriter"
)

const dateLayout = "2006-01-02 15:04:05"

// WriteText renders the plain-text report.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "=== Ceph OSD Performance Analysis Report ===")
	fmt.Fprintf(bw, "Analysis Date: %s\n", r.GeneratedAt.Format(dateLayout))
	fmt.Fprintf(bw, "Input File: %s\n", r.Input)
	fmt.Fprintf(bw, "Report ID: %s\n", r.ID)
	fmt.Fprintf(bw, "\nTotal OSDs analyzed: %d\n", r.TotalOSDs)
	fmt.Fprintf(bw, "Device Classes: %s\n", strings.Join(r.DeviceClasses, ", "))
	fmt.Fprintf(bw, "Number of runs: %d\n", len(r.Runs))

	fmt.Fprintf(bw, "\n=== Basic Statistics by %s ===\n", groupTitle(r.GroupBy))
	writeStatsTable(bw, r)

	fmt.Fprintln(bw, "\n=== Aggregate Performance by Run ===")
	for _, class := range r.DeviceClasses {
		fmt.Fprintf(bw, "\n%s Devices:\n", strings.ToUpper(class))
		for _, rt := range r.TotalsFor(class) {
			fmt.Fprintf(bw, "Run %d: Total Bandwidth: %s, Total IOPS: %s\n",
				rt.RunNumber, HumanBytesPerSec(rt.BytesPerSecSum), FormatIOPS(rt.IOPSSum))
		}
	}

	fmt.Fprintln(bw, "\n=== Potential Performance Issues ===")
	fmt.Fprintf(bw, "Threshold: %s%% below the per-run class median in more than half of %d runs\n",
		strconv.FormatFloat(r.ThresholdPct, 'f', -1, 64), r.Outliers.TotalRuns)
	if r.Outliers.Empty() {
		fmt.Fprintln(bw, "No significant performance outliers detected.")
		return bw.Flush()
	}
	for _, class := range r.Outliers.Classes() {
		fmt.Fprintf(bw, "\nPotential slow drives (%s):\n", class)
		for _, d := range r.DetailsFor(class) {
			fmt.Fprintf(bw, "OSD.%s: Avg IOPS: %.2f, Avg Throughput: %s (slow in %d/%d runs)\n",
				d.OSDID, d.AvgIOPS, HumanBytesPerSec(d.AvgBytesPerSec), d.UnderperformingRuns, d.TotalRuns)
		}
	}
	return bw.Flush()
}

func writeStatsTable(w io.Writer, r *Report) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{
		r.GroupBy, "n",
		"bw mean", "bw median", "bw std", "bw min", "bw max",
		"iops mean", "iops median", "iops std", "iops min", "iops max",
	})
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, g := range r.Stats {
		tw.Append(statsRow(g))
	}
	tw.Render()
}

func statsRow(g analysis.GroupStats) []string {
	bw, ops := g.BytesPerSec, g.IOPS
	return []string{
		g.Key, strconv.Itoa(g.Size),
		HumanBytesPerSec(bw.Mean), HumanBytesPerSec(bw.Median), HumanBytesPerSec(bw.Std),
		HumanBytesPerSec(bw.Min), HumanBytesPerSec(bw.Max),
		FormatIOPS(ops.Mean), FormatIOPS(ops.Median), FormatIOPS(ops.Std),
		FormatIOPS(ops.Min), FormatIOPS(ops.Max),
	}
}
