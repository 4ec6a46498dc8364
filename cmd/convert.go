package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	cfgpkg "github.com/KaramelBytes/osdperf-cli/internal/config"
	"github.com/KaramelBytes/osdperf-cli/internal/parser"
	"github.com/spf13/cobra"
)

var (
	convDelimiter  string
	convSheetName  string
	convSheetIndex int
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output.parquet>",
	Short: "Validate a benchmark file and store it as Parquet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]
		if !strings.EqualFold(filepath.Ext(out), ".parquet") {
			return fmt.Errorf("output must have a .parquet extension: %s", out)
		}
		delim, err := cfgpkg.ParseDelimiter(convDelimiter)
		if err != nil {
			return fmt.Errorf("--delimiter: %w", err)
		}
		opt := parser.Options{
			Delimiter:  delim,
			SheetName:  convSheetName,
			SheetIndex: convSheetIndex,
			Logger:     logger.Named("loader"),
		}
		tbl, err := parser.LoadFile(in, opt)
		if err != nil {
			return err
		}
		if err := parser.WriteParquet(out, tbl.Rows()); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d samples to %s\n", tbl.Len(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	convertCmd.Flags().StringVar(&convSheetName, "sheet-name", "", "XLSX: sheet name to read")
	convertCmd.Flags().IntVar(&convSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
