// Package seed loads the plant catalogue and monthly watering profiles from CSV or
// Excel sheets into the database.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by normalised header name.
type Row struct {
	Line   int // 1-based record number, the header is record 1
	Fields map[string]string
}

// Get returns the first non-empty value among the given header names.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.Fields[normaliseHeader(n)]); v != "" {
			return v
		}
	}
	return ""
}

// ReadTable reads a .csv or .xlsx file. For workbooks the first sheet is used.
func ReadTable(path string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("unsupported seed file %q (expected .csv or .xlsx)", path)
	}
}

func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(records)
}

func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, errors.New("empty table")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = normaliseHeader(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		fields := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(rec) && name != "" {
				fields[name] = rec[j]
			}
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows, nil
}

func normaliseHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
