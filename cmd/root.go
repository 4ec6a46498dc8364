package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/osdperf-cli/internal/config"
	"github.com/KaramelBytes/osdperf-cli/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile       string
	debug         bool
	flagLogLevel  string
	flagLogFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Diagnostics logger (stderr)
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "osdperf",
	Short: "osdperf CLI: analyze Ceph OSD benchmark results and flag slow drives",
	Long: `osdperf reads per-OSD benchmark samples (throughput and IOPS over repeated runs),
summarizes them per device class and flags drives that fall well below their
peers' per-run median in most runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.osdperf/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug | info | warn | error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console | json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c

	level, format := cfg.LogLevel, cfg.LogFormat
	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		level = flagLogLevel
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		format = flagLogFormat
	}
	if debug {
		level = "debug"
	}
	l, err := logging.New(level, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using info/console logging\n", err)
		l, _ = logging.New("info", logging.FormatConsole)
	}
	if l != nil {
		logger = l
	}
}

// settings returns the loaded configuration, or defaults if none was loaded.
func settings() *cfgpkg.Global {
	if cfg == nil {
		return cfgpkg.Defaults()
	}
	return cfg
}
