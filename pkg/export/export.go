package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet used for XLSX output.
const SheetName = "Data"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", cerr.Newf(cerr.RequestInvalid, "unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

func (f Format) Extension() string { return "." + string(f) }

// Input is what gets exported.
type Input struct {
	Kind       chart.Kind
	Series     chart.SeriesSet
	Categories []string
	Labels     []string
}

type jsonDoc struct {
	Type       chart.Kind      `json:"type,omitempty"`
	Series     chart.SeriesSet `json:"series"`
	Categories []string        `json:"categories,omitempty"`
	Labels     []string        `json:"labels,omitempty"`
}

// Write encodes in as f.
func Write(w io.Writer, f Format, in Input) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonDoc{Type: in.Kind, Series: in.Series, Categories: in.Categories, Labels: in.Labels})
	case FormatCSV:
		return writeCSV(w, TableOf(in.Series, in.Categories, in.Labels))
	case FormatXLSX:
		return writeXLSX(w, TableOf(in.Series, in.Categories, in.Labels))
	default:
		return cerr.Newf(cerr.RequestInvalid, "unsupported export format %q", string(f))
	}
}

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	rec := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = cellString(row[i])
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
	if err != nil {
		return fmt.Errorf("xlsx: header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("xlsx: row %d: %w", r+2, err)
		}
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = xlsxValue(v)
		}
		if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", r+2, err)
		}
	}
	return f.Write(w)
}

// xlsxValue keeps numbers, strings and booleans native; nil stays an empty cell.
func xlsxValue(v any) any {
	switch v.(type) {
	case nil, string, float64, int, int64, bool:
		return v
	default:
		return cellString(v)
	}
}
