// Package export renders receipt collections as XLSX, CSV or JSON files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user supplied name onto a Format. A leading dot and
// mixed case are tolerated.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", common.NewAppError("INVALID_FORMAT",
		fmt.Sprintf("unknown export format %q, accepted: csv, json, xlsx", name),
		common.ErrInvalidInput)
}

// Suffix is the file name suffix for the format, dot included.
func (f Format) Suffix() string { return "." + string(f) }

// Service produces export bytes for receipt collections.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// columns is the tabular layout shared by the CSV and XLSX exports. JSON
// exports carry the full record instead.
func columns() []string {
	return []string{"Date", "Vendor", "Amount", "Currency", "Category", "Confidence", "Source File"}
}

// Export renders the receipts in the requested format and returns the bytes
// together with the file suffix they should be saved under.
func (s *Service) Export(receipts []*entity.Receipt, format Format) ([]byte, string, error) {
	start := time.Now()

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = exportCSV(receipts)
	case FormatJSON:
		data, err = exportJSON(receipts)
	case FormatXLSX:
		data, err = exportXLSX(receipts)
	default:
		return nil, "", common.NewAppError("INVALID_FORMAT",
			fmt.Sprintf("unknown export format %q, accepted: csv, json, xlsx", format),
			common.ErrInvalidInput)
	}
	if err != nil {
		return nil, "", common.NewAppError("EXPORT_FAILED",
			fmt.Sprintf("render %s export", format), err)
	}

	s.logger.Info("export complete",
		"format", format,
		"rows", len(receipts),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, format.Suffix(), nil
}

func exportCSV(receipts []*entity.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns()); err != nil {
		return nil, err
	}
	for _, r := range receipts {
		row := []string{
			r.TxDate.Format("2006-01-02"),
			r.Vendor,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			r.CurrencyCode,
			r.CategoryName,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.SourceFile,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportJSON(receipts []*entity.Receipt) ([]byte, error) {
	if receipts == nil {
		receipts = []*entity.Receipt{}
	}
	return json.MarshalIndent(receipts, "", "  ")
}

func exportXLSX(receipts []*entity.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range columns() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range receipts {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.TxDate.Format("2006-01-02"))
		write(2, r.Vendor)
		write(3, r.Amount)
		write(4, r.CurrencyCode)
		write(5, r.CategoryName)
		write(6, r.Confidence)
		write(7, r.SourceFile)
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 32) // vendor
	_ = f.SetColWidth(sheet, "C", "C", 12) // amount
	_ = f.SetColWidth(sheet, "D", "E", 14) // currency, category
	_ = f.SetColWidth(sheet, "F", "F", 12) // confidence
	_ = f.SetColWidth(sheet, "G", "G", 40) // source file

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
