// internal/core/services/export.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const (
	exportPageSize   = 100
	exportMaxRecords = 50000
)

var exportHeaders = []string{
	"Record ID", "Kind", "Created At", "User ID", "Payment Method",
	"Product ID", "Qty", "Unit Value", "Subtotal", "Record Total",
}

// ExportService renders committed ledger records as spreadsheets
type ExportService struct {
	records          ports.LedgerRepository
	currencyExponent int32
	logger           *slog.Logger
}

// NewExportService creates a new export service. currencyExponent is the number
// of decimal places between the stored minor unit and the displayed amount.
func NewExportService(records ports.LedgerRepository, currencyExponent int32, logger *slog.Logger) *ExportService {
	return &ExportService{
		records:          records,
		currencyExponent: currencyExponent,
		logger:           logger.With(slog.String("service", "export")),
	}
}

// Workbook builds an xlsx file with one row per ledger line of kind in [from, to).
func (s *ExportService) Workbook(ctx context.Context, kind domain.OperationKind, from, to time.Time) ([]byte, int, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet(sheetName(kind))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range exportHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	filter := domain.LedgerFilter{Kind: kind, From: &from, To: &to, Page: 1, PageSize: exportPageSize}
	exported := 0

	for exported < exportMaxRecords {
		records, _, err := s.records.List(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load %s records: %w", kind, err)
		}

		for _, r := range records {
			for _, line := range r.Lines {
				s.addLineRow(sheet.AddRow(), r, line)
			}
		}
		exported += len(records)

		if len(records) < filter.PageSize {
			break
		}
		filter.Page++
	}

	for i := range exportHeaders {
		sheet.SetColWidth(i+1, i+1, 16)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, 0, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "ledger export generated",
		slog.String("kind", string(kind)),
		slog.Int("records", exported),
		slog.Int("bytes", buffer.Len()))

	return buffer.Bytes(), exported, nil
}

func (s *ExportService) addLineRow(row *xlsx.Row, r *domain.LedgerRecord, line domain.LedgerLine) {
	values := []string{
		strconv.FormatInt(r.ID, 10),
		string(r.Kind),
		r.CreatedAt.Format(time.RFC3339),
		strconv.FormatInt(r.ActorID, 10),
		r.PaymentMethod,
		strconv.FormatInt(line.ProductID, 10),
		strconv.FormatInt(line.Quantity, 10),
		domain.MinorToMajor(line.UnitValue, s.currencyExponent).StringFixed(s.currencyExponent),
		domain.MinorToMajor(line.LineTotal, s.currencyExponent).StringFixed(s.currencyExponent),
		domain.MinorToMajor(r.Total, s.currencyExponent).StringFixed(s.currencyExponent),
	}
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func sheetName(kind domain.OperationKind) string {
	if kind == domain.KindRestock {
		return "Purchases"
	}
	return "Sales"
}

// ExportSales builds the sales workbook for [from, to).
func (s *ExportService) ExportSales(ctx context.Context, from, to time.Time) ([]byte, int, error) {
	return s.Workbook(ctx, domain.KindSale, from, to)
}
