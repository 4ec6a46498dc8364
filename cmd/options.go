package cmd

import (
	"fmt"
	"strings"

	cfgpkg "github.com/KaramelBytes/osdperf-cli/internal/config"
	"github.com/KaramelBytes/osdperf-cli/internal/parser"
	"github.com/KaramelBytes/osdperf-cli/internal/report"
	"github.com/spf13/cobra"
)

// analysisOptions is the effective configuration for one analyze invocation.
type analysisOptions struct {
	Load   parser.Options
	Report report.Options
	Format string
}

// addAnalysisFlags registers the flags shared by analyze and analyze-batch.
func addAnalysisFlags(c *cobra.Command) {
	f := c.Flags()
	f.Float64("threshold", 0, "percent below the per-run class median that counts as slow (default from config: 15)")
	f.String("group-by", "", "statistics grouping: device_class | osd_id | run_number")
	f.StringP("format", "f", "", "report format: text | markdown | json | yaml")
	f.Bool("parallel", false, "evaluate device classes concurrently")
	f.String("delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	f.String("sheet-name", "", "XLSX: sheet name to analyze")
	f.Int("sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// resolveAnalysisOptions merges configuration with flags the user set explicitly.
func resolveAnalysisOptions(c *cobra.Command) (analysisOptions, error) {
	s := settings()
	f := c.Flags()
	opt := analysisOptions{
		Format: s.Format,
		Report: report.Options{
			GroupBy:        s.GroupBy,
			ThresholdPct:   s.Threshold,
			Parallel:       s.Parallel,
			SketchAccuracy: s.SketchAccuracy,
		},
	}
	delim := s.Delimiter

	if f.Changed("threshold") {
		v, _ := f.GetFloat64("threshold")
		opt.Report.ThresholdPct = v
	}
	if f.Changed("group-by") {
		v, _ := f.GetString("group-by")
		opt.Report.GroupBy = strings.TrimSpace(v)
	}
	if f.Changed("format") {
		v, _ := f.GetString("format")
		if !cfgpkg.ValidFormat(v) {
			return opt, fmt.Errorf("unsupported --format: %s (use %s)", v, strings.Join(cfgpkg.Formats, ", "))
		}
		opt.Format = strings.ToLower(strings.TrimSpace(v))
	}
	if f.Changed("parallel") {
		v, _ := f.GetBool("parallel")
		opt.Report.Parallel = v
	}
	if f.Changed("delimiter") {
		delim, _ = f.GetString("delimiter")
	}
	r, err := cfgpkg.ParseDelimiter(delim)
	if err != nil {
		return opt, fmt.Errorf("--delimiter: %w", err)
	}
	opt.Load.Delimiter = r
	opt.Load.SheetName, _ = f.GetString("sheet-name")
	opt.Load.SheetIndex, _ = f.GetInt("sheet-index")
	opt.Load.Logger = logger.Named("loader")
	return opt, nil
}
