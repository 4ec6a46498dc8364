package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Report formats understood by the CLI.
var Formats = []string{"text", "markdown", "json", "yaml"}

// Global configuration structure.
type Global struct {
	// Analysis
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	GroupBy        string  `mapstructure:"group_by" yaml:"group_by"`
	Parallel       bool    `mapstructure:"parallel" yaml:"parallel"`
	SketchAccuracy float64 `mapstructure:"sketch_accuracy" yaml:"sketch_accuracy"`

	// Input/output
	Delimiter  string `mapstructure:"delimiter" yaml:"delimiter"`
	Format     string `mapstructure:"format" yaml:"format"`
	MetricsOut string `mapstructure:"metrics_out" yaml:"metrics_out"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		Threshold:      analysis.DefaultThresholdPct,
		GroupBy:        analysis.KeyDeviceClass,
		SketchAccuracy: analysis.DefaultSketchAccuracy,
		Format:         "text",
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Dir returns ~/.osdperf.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".osdperf"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.osdperf/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("OSDPERF")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("group_by", d.GroupBy)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("sketch_accuracy", d.SketchAccuracy)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("format", d.Format)
	v.SetDefault("metrics_out", d.MetricsOut)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges and enumerations.
func (c *Global) Validate() error {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold < 0 {
		return fmt.Errorf("config threshold: %w", &analysis.ThresholdError{Value: c.Threshold})
	}
	if !analysis.ValidGroupKey(c.GroupBy) {
		return fmt.Errorf("config group_by: %w", &analysis.GroupKeyError{Key: c.GroupBy})
	}
	if c.SketchAccuracy <= 0 || c.SketchAccuracy >= 1 {
		return fmt.Errorf("config sketch_accuracy %v: must be in (0, 1)", c.SketchAccuracy)
	}
	if !ValidFormat(c.Format) {
		return fmt.Errorf("config format %q: use one of %s", c.Format, strings.Join(Formats, ", "))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config log_format %q: use console or json", c.LogFormat)
	}
	if _, err := ParseDelimiter(c.Delimiter); err != nil {
		return err
	}
	return nil
}

// ValidFormat reports whether f names a report format.
func ValidFormat(f string) bool {
	f = strings.ToLower(strings.TrimSpace(f))
	for _, k := range Formats {
		if f == k {
			return true
		}
	}
	return false
}

// ParseDelimiter maps the delimiter setting to a rune; "" means auto.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	default:
		return 0, fmt.Errorf("unsupported delimiter: %s (use ',' | ';' | 'tab')", s)
	}
}
