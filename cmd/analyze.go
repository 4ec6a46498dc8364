package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/KaramelBytes/osdperf-cli/internal/parser"
	"github.com/KaramelBytes/osdperf-cli/internal/report"
	"github.com/KaramelBytes/osdperf-cli/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	anaOutputPath string
	anaMetricsOut string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX/Parquet benchmark file and report slow OSDs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := resolveAnalysisOptions(cmd)
		if err != nil {
			return err
		}
		metricsOut := settings().MetricsOut
		if cmd.Flags().Changed("metrics-out") {
			metricsOut = anaMetricsOut
		}

		rep, out, err := analyzeFile(cmd.Context(), args[0], opt)
		if err != nil {
			return err
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
		} else {
			if _, err := os.Stdout.Write(out); err != nil {
				return err
			}
		}
		if metricsOut != "" {
			if err := report.WriteTextfile(metricsOut, rep); err != nil {
				return err
			}
			if anaOutputPath != "" {
				fmt.Printf("✓ Wrote metrics to %s\n", metricsOut)
			}
		}
		return nil
	},
}

// analyzeFile loads one sample file, builds its report and renders it.
func analyzeFile(ctx context.Context, path string, opt analysisOptions) (*report.Report, []byte, error) {
	tbl, err := parser.LoadFile(path, opt.Load)
	if err != nil {
		return nil, nil, err
	}
	rep, err := report.Build(ctx, tbl, path, opt.Report)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("analysis complete",
		zap.String("file", path),
		zap.String("report_id", rep.ID),
		zap.Int("flagged", len(rep.Details)),
		zap.Float64("threshold_pct", rep.ThresholdPct),
	)
	out, err := report.Render(rep, opt.Format)
	if err != nil {
		return nil, nil, err
	}
	return rep, out, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report (default stdout)")
	analyzeCmd.Flags().StringVar(&anaMetricsOut, "metrics-out", "", "optional path for a Prometheus textfile with the results")
}
