package connectors

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"
)

const utf8BOM = "\ufeff"

// ParseUpload dispatches on the file extension.
func ParseUpload(filename, contentType string, r io.Reader) (TabularData, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ParseXLSX(r)
	case ".csv", ".txt", "":
		return ParseCSV(r, contentType)
	default:
		return TabularData{}, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a header row followed by data rows. The content type's
// charset, if any, is honoured.
func ParseCSV(r io.Reader, contentType string) (TabularData, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return TabularData{}, fmt.Errorf("failed to detect charset: %w", err)
	}

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return TabularData{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return tabulate(records)
}

// ParseXLSX reads the first worksheet.
func ParseXLSX(r io.Reader) (TabularData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return TabularData{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return TabularData{}, fmt.Errorf("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return TabularData{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return tabulate(records)
}

func tabulate(records [][]string) (TabularData, error) {
	if len(records) == 0 {
		return TabularData{}, fmt.Errorf("file is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		headers[i] = strings.TrimSpace(h)
	}

	data := TabularData{Headers: headers, Rows: make([]Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
