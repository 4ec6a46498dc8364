package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/osdperf-cli/internal/report"
	"github.com/KaramelBytes/osdperf-cli/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	abOutDir          string
	abMetricsDir      string
	abQuiet           bool
	abContinueOnError bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple benchmark files with progress output",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		opt, err := resolveAnalysisOptions(cmd)
		if err != nil {
			return err
		}
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return fmt.Errorf("create --out-dir: %w", err)
			}
		}

		var errs error
		total := len(files)
		done := 0
		for i, path := range files {
			if !abQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if err := analyzeBatchFile(cmd.Context(), path, opt); err != nil {
				if !abContinueOnError {
					return err
				}
				logger.Warn("analysis failed", zap.String("file", path), zap.Error(err))
				if !abQuiet {
					fmt.Printf("⚠ Skipped %s: %v\n", filepath.Base(path), err)
				}
				errs = multierr.Append(errs, err)
				continue
			}
			done++
		}
		if !abQuiet {
			fmt.Printf("✓ Analyzed %d/%d files\n", done, total)
		}
		if errs != nil {
			return fmt.Errorf("%d of %d files failed: %w", len(multierr.Errors(errs)), total, errs)
		}
		return nil
	},
}

// expandInputs resolves glob patterns, keeps literal paths that exist, and
// returns a sorted, de-duplicated list.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func analyzeBatchFile(ctx context.Context, path string, opt analysisOptions) error {
	rep, out, err := analyzeFile(ctx, path, opt)
	if err != nil {
		return err
	}
	stem := utils.BaseName(path)
	if abOutDir != "" {
		dst := utils.UniquePath(abOutDir, stem, report.Extension(opt.Format))
		if err := utils.SafeWriteFile(dst, out); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if !abQuiet {
			fmt.Printf("✓ Wrote analysis to %s\n", dst)
		}
	} else if !abQuiet {
		fmt.Println(string(out))
	}
	if abMetricsDir != "" {
		if err := utils.EnsureDir(abMetricsDir); err != nil {
			return fmt.Errorf("create --metrics-dir: %w", err)
		}
		dst := utils.UniquePath(abMetricsDir, stem, ".prom")
		if err := report.WriteTextfile(dst, rep); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	addAnalysisFlags(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "write one report per input into this directory (default stdout)")
	analyzeBatchCmd.Flags().StringVar(&abMetricsDir, "metrics-dir", "", "write one Prometheus textfile per input into this directory")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	analyzeBatchCmd.Flags().BoolVar(&abContinueOnError, "continue-on-error", false, "keep going when a file fails and report all failures at the end")
}
