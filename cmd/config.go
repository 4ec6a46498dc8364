package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/osdperf-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set osdperf configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		fmt.Printf("threshold: %s\n", strconv.FormatFloat(c.Threshold, 'f', -1, 64))
		fmt.Printf("group_by: %s\n", c.GroupBy)
		fmt.Printf("parallel: %t\n", c.Parallel)
		fmt.Printf("sketch_accuracy: %s\n", strconv.FormatFloat(c.SketchAccuracy, 'f', -1, 64))
		fmt.Printf("format: %s\n", c.Format)
		if c.Delimiter != "" {
			fmt.Printf("delimiter: %q\n", c.Delimiter)
		}
		if c.MetricsOut != "" {
			fmt.Printf("metrics_out: %s\n", c.MetricsOut)
		}
		fmt.Printf("log_level: %s\n", c.LogLevel)
		fmt.Printf("log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		next := *cfg
		switch key {
		case "threshold":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for threshold: %w", err)
			}
			next.Threshold = f
		case "group_by":
			next.GroupBy = val
		case "parallel":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for parallel: %w", err)
			}
			next.Parallel = b
		case "sketch_accuracy":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for sketch_accuracy: %w", err)
			}
			next.SketchAccuracy = f
		case "format":
			next.Format = strings.ToLower(val)
		case "delimiter":
			next.Delimiter = val
		case "metrics_out":
			next.MetricsOut = val
		case "log_level":
			next.LogLevel = strings.ToLower(val)
		case "log_format":
			next.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
