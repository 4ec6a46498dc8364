package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
	"go.uber.org/zap"
)

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Load(path string, opt Options) ([]analysis.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	return ReadCSV(f, delim, opt.logger())
}

// ReadCSV reads samples from CSV text with a header row.
func ReadCSV(rd io.Reader, delim rune, log *zap.Logger) ([]analysis.Sample, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1
	// Leading-space trimming would swallow empty fields of whitespace-delimited files.
	r.TrimLeadingSpace = delim != '\t' && delim != ' '
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ci, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var out []analysis.Sample
	row := 0
	blank := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++
		if isBlank(rec) {
			blank++
			continue
		}
		s, err := ci.sample(rec, row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if blank > 0 && log != nil {
		log.Warn("skipped blank rows", zap.Int("count", blank))
	}
	return out, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
