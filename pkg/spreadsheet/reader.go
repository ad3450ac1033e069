package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv"
)

var (
	// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrEmptySheet is returned when the first sheet has no header row.
	ErrEmptySheet = errors.New("spreadsheet has no header row")
)

// Row is a data row keyed by its header cell. Line is the 1-based line in
// the sheet, the header being line 1.
type Row struct {
	Line   int
	Fields map[string]string
}

// Read parses the first sheet of an uploaded CSV or XLSX file. The format is
// taken from the file name and falls back to content sniffing. Rows whose
// cells are all blank are dropped.
func Read(filename string, data []byte) ([]Row, error) {
	switch detectFormat(filename, data) {
	case "xlsx":
		return ReadXLSX(bytes.NewReader(data))
	case "csv":
		return ReadCSV(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
}

func detectFormat(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".txt":
		return "csv"
	}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is(mimeXLSX):
		return "xlsx"
	case mt.Is(mimeCSV):
		return "csv"
	}
	return ""
}

// ReadXLSX parses the first worksheet of an XLSX workbook.
func ReadXLSX(r io.Reader) ([]Row, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close() //nolint:errcheck

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptySheet
	}
	records, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return toRows(records)
}

// ReadCSV parses comma or semicolon separated text with a header line.
func ReadCSV(r io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\uFEFF"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = delimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return toRows(records)
}

func delimiter(raw []byte) rune {
	header := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		header = raw[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 || isBlank(records[0]) {
		return nil, ErrEmptySheet
	}
	headers := make([]string, len(records[0]))
	seen := make(map[string]struct{}, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if _, dup := seen[h]; dup || h == "" {
			continue
		}
		seen[h] = struct{}{}
		headers[i] = h
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		fields := make(map[string]string, len(headers))
		for col, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if col < len(record) {
				value = strings.TrimSpace(record[col])
			}
			fields[header] = value
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
