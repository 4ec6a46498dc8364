package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// benchCSV has one chronically slow hdd (B); ssd only ran once.
const benchCSV = `device_class,osd_id,run_number,timestamp,bytes_per_sec,iops
hdd,A,1,2024-05-01 10:00:00,1000,100
hdd,B,1,2024-05-01 10:00:00,1000,50
ssd,s1,1,2024-05-01 10:00:00,1048576,1000
ssd,s2,1,2024-05-01 10:00:00,2097152,2000
hdd,A,2,2024-05-01 11:00:00,1000,100
hdd,B,2,2024-05-01 11:00:00,1000,40
`

// resetFlags clears values and Changed state that persist across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns its error.
func execCmd(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

// setupHome isolates config under a temp HOME and writes the sample CSV there.
func setupHome(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	csvPath = filepath.Join(home, "bench.csv")
	if err := os.WriteFile(csvPath, []byte(benchCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestCLI_AnalyzeTextReportAndMetrics(t *testing.T) {
	home, csvPath := setupHome(t)
	out := filepath.Join(home, "out", "report.txt")
	prom := filepath.Join(home, "textfile", "osdperf.prom")

	runCmd(t, "analyze", csvPath, "-o", out, "--metrics-out", prom)

	body := readFile(t, out)
	for _, want := range []string{
		"=== Ceph OSD Performance Analysis Report ===",
		"Input File: " + csvPath,
		"Total OSDs analyzed: 4",
		"Number of runs: 2",
		"SSD Devices:\nRun 1: Total Bandwidth: 3.00 MB/s, Total IOPS: 3,000",
		"Potential slow drives (hdd):\nOSD.B: Avg IOPS: 45.00",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("report missing %q:\n%s", want, body)
		}
	}

	metrics := readFile(t, prom)
	if !strings.Contains(metrics, `osdperf_outlier_osds{device_class="hdd"} 1`) {
		t.Fatalf("metrics missing outlier gauge:\n%s", metrics)
	}
}

func TestCLI_ConfigThresholdAppliesToAnalyze(t *testing.T) {
	home, csvPath := setupHome(t)

	runCmd(t, "config", "set", "threshold", "60")
	if got := readFile(t, filepath.Join(home, ".osdperf", "config.yaml")); !strings.Contains(got, "threshold: 60") {
		t.Fatalf("config not saved: %s", got)
	}

	out := filepath.Join(home, "report.json")
	runCmd(t, "analyze", csvPath, "--format", "json", "-o", out)

	var doc struct {
		ThresholdPct float64             `json:"threshold_pct"`
		Outliers     map[string][]string `json:"outliers"`
	}
	if err := json.Unmarshal([]byte(readFile(t, out)), &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if doc.ThresholdPct != 60 {
		t.Fatalf("expected threshold 60 from config, got %v", doc.ThresholdPct)
	}
	if len(doc.Outliers) != 0 {
		t.Fatalf("expected no outliers at 60%%, got %v", doc.Outliers)
	}

	// An explicit flag wins over the config file.
	runCmd(t, "analyze", csvPath, "--format", "json", "--threshold", "15", "-o", out)
	if err := json.Unmarshal([]byte(readFile(t, out)), &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got := doc.Outliers["hdd"]; len(got) != 1 || got[0] != "B" {
		t.Fatalf("expected hdd B flagged, got %v", doc.Outliers)
	}
}

func TestCLI_ConfigSetRejectsInvalid(t *testing.T) {
	setupHome(t)
	if err := execCmd("config", "set", "--", "threshold", "-3"); !errors.Is(err, analysis.ErrInvalidThreshold) {
		t.Fatalf("expected invalid threshold error, got %v", err)
	}
	if err := execCmd("config", "set", "format", "html"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if err := execCmd("config", "set", "colour", "blue"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestCLI_AnalyzeErrors(t *testing.T) {
	home, csvPath := setupHome(t)
	out := filepath.Join(home, "r.txt")

	if err := execCmd("analyze", csvPath, "--group-by", "iops", "-o", out); !errors.Is(err, analysis.ErrInvalidGroupKey) {
		t.Fatalf("expected invalid group key, got %v", err)
	}
	if err := execCmd("analyze", csvPath, "--threshold=-1", "-o", out); !errors.Is(err, analysis.ErrInvalidThreshold) {
		t.Fatalf("expected invalid threshold, got %v", err)
	}
	if err := execCmd("analyze", csvPath, "--format", "html", "-o", out); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if err := execCmd("analyze", filepath.Join(home, "missing.csv"), "-o", out); err == nil {
		t.Fatalf("expected error for missing input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no report should be written on error")
	}
}

func TestCLI_ConvertThenAnalyzeParquet(t *testing.T) {
	home, csvPath := setupHome(t)
	pq := filepath.Join(home, "data", "bench.parquet")
	runCmd(t, "convert", csvPath, pq)

	out := filepath.Join(home, "report.md")
	runCmd(t, "analyze", pq, "--format", "markdown", "--group-by", "run_number", "-o", out)
	body := readFile(t, out)
	if !strings.Contains(body, "## Statistics by Run") || !strings.Contains(body, "| hdd | osd.B |") {
		t.Fatalf("unexpected markdown report:\n%s", body)
	}

	if err := execCmd("convert", csvPath, filepath.Join(home, "bench.csv2")); err == nil {
		t.Fatalf("expected error for non-parquet output")
	}
}
