// Package parser loads benchmark sample files into an analysis.Table.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"go.uber.org/zap"
)

// Options controls how sample files are read.
type Options struct {
	// Delimiter for CSV. If 0, chosen by extension (',' or '\t' for .tsv).
	Delimiter rune
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
	// Logger receives load diagnostics; nil disables them.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Loader reads one file format into samples.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) ([]analysis.Sample, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a file format no registered loader accepts.
var ErrUnsupported = errors.New("unsupported sample file format")

// LoadFile selects a loader by filename and builds a validated Table.
func LoadFile(path string, opt Options) (*analysis.Table, error) {
	log := opt.logger().With(zap.String("file", filepath.Base(path)))
	for _, l := range registry {
		if !l.CanLoad(path) {
			continue
		}
		rows, err := l.Load(path, opt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		tbl, err := analysis.NewTable(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		log.Debug("loaded samples",
			zap.Int("rows", tbl.Len()),
			zap.Strings("device_classes", tbl.DeviceClasses()),
			zap.Int("runs", len(tbl.RunNumbers())),
		)
		return tbl, nil
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
	Register(parquetLoader{})
}
