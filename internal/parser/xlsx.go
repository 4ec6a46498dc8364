package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/osdperf-cli/internal/analysis"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Load reads the selected sheet. If SheetName is empty and SheetIndex <= 0,
// the first sheet is used. SheetIndex is 1-based (Sheet1 == 1).
func (xlsxLoader) Load(path string, opt Options) ([]analysis.Sample, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	target, err := resolveSheet(zr, path, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	sst, err := readZipFile(zr, "xl/sharedStrings.xml")
	if err != nil {
		return nil, err
	}
	data, err := readZipFile(zr, target)
	if err != nil {
		return nil, err
	}
	rr := newSheetRowReader(data, parseSharedStrings(sst))

	header, ok := rr.Next()
	if !ok || len(header) == 0 {
		return nil, nil
	}
	ci, err := indexHeader(header)
	if err != nil {
		return nil, err
	}
	var out []analysis.Sample
	row := 0
	for {
		rec, ok := rr.Next()
		if !ok {
			break
		}
		row++
		if isBlank(rec) {
			continue
		}
		s, err := ci.sample(rec, row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func resolveSheet(zr *zip.Reader, path, sheetName string, sheetIndex int) (string, error) {
	wb, err := readZipFile(zr, "xl/workbook.xml")
	if err != nil {
		return "", err
	}
	rb, err := readZipFile(zr, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return "", err
	}
	sheets := parseWorkbook(wb)
	rels := parseRelationships(rb)
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, sheetName) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
				break
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'; available sheets: %s",
			sheetName, filepath.Base(path), sheetNames(sheets))
	}
	idx := sheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range sheets {
		if s.SheetID == idx {
			if rel, ok := rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
			break
		}
	}
	// Workbooks without relationship parts still use the conventional name.
	target := fmt.Sprintf("xl/worksheets/sheet%d.xml", idx)
	if f, err := zr.Open(target); err == nil {
		f.Close()
		return target, nil
	}
	return "", fmt.Errorf("sheet index %d not found in workbook '%s'; available sheets: %s",
		idx, filepath.Base(path), sheetNames(sheets))
}

func sheetNames(sheets []workbookSheet) string {
	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

type workbookSheet struct {
	Name    string
	SheetID int
	RID     string
}

// xmlStarts calls fn for every start element in data until EOF or a decode error.
func xmlStarts(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func parseWorkbook(data []byte) []workbookSheet {
	var sheets []workbookSheet
	xmlStarts(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		// "id" lives in the r: namespace.
		sheets = append(sheets, workbookSheet{
			Name:    attr(se, "name"),
			SheetID: atoiSafe(attr(se, "sheetId")),
			RID:     attr(se, "id"),
		})
	})
	return sheets
}

// parseRelationships maps relationship id to target path.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	xmlStarts(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		if id, target := attr(se, "Id"), attr(se, "Target"); id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

// readZipFile returns nil, nil for a missing entry; optional parts such as
// sharedStrings.xml are absent in many workbooks.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inText {
				buf.Write(el)
			}
		}
	}
}

// sheetRowReader streams rows of a worksheet as string cells. Cells missing
// from the XML are returned as empty strings.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "row" {
				inRow, row = true, nil
				continue
			}
			if !inRow || el.Name.Local != "c" {
				continue
			}
			col := colIndexFromRef(attr(el, "r"))
			if col < 0 {
				col = len(row)
			}
			val := r.cellValue(attr(el, "t"))
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = val
		case xml.EndElement:
			if el.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to the end of the current <c> element and
// returns its text from <v> or inline <is><t>, resolving shared strings.
func (r *sheetRowReader) cellValue(cellType string) string {
	var val strings.Builder
	inValue := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val.String()
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "v" || el.Name.Local == "t" {
				inValue = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				if cellType != "s" {
					return val.String()
				}
				idx := atoiSafe(val.String())
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx]
				}
				return ""
			}
		case xml.CharData:
			if inValue {
				val.Write(el)
			}
		}
	}
}

// colIndexFromRef turns a cell reference like "C12" into a 0-based column index.
func colIndexFromRef(ref string) int {
	idx := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets such as "/xl/worksheets/sheet1.xml"
// or "worksheets/sheet1.xml" to ZIP entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return "xl/" + rel
}
