package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
)

const (
	SheetHeader = "Kopfdaten"
	SheetItems  = "Positionen"

	// ContentType is the media type of the produced workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var itemColumns = []string{
	"Position",
	"Artikelnummer",
	"Beschreibung",
	"Menge",
	"Einheit",
	"Einzelpreis",
	"Rabatt %",
	"Gesamtpreis",
}

// Service renders analysis results as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultXLSX returns a workbook with the header fields on one sheet and the
// line items, followed by a sum of their totals, on another.
func (s *Service) ResultXLSX(ctx context.Context, res *entity.AnalysisResult) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("nil analysis result")
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetHeader); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	writeHeaderSheet(f, res, bold)
	writeItemsSheet(f, res, bold, money)

	idx, _ := f.GetSheetIndex(SheetHeader)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"rows", len(res.LineItems),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeaderSheet(f *excelize.File, res *entity.AnalysisResult, bold int) {
	h := res.Header
	rows := []struct {
		label string
		value any
	}{
		{"Auftragsnummer", str(h.OrderNumber)},
		{"Datum", str(h.Date)},
		{"Lieferant", str(h.Supplier)},
		{"Lieferant Adresse", str(h.SupplierAddress)},
		{"Kunde", str(h.Customer)},
		{"Kunde Adresse", str(h.CustomerAddress)},
		{"Gesamtbetrag netto", num(h.NetTotal)},
		{"MwSt", num(h.VAT)},
		{"Gesamtbetrag brutto", num(h.GrossTotal)},
		{"Währung", str(h.Currency)},
		{"Zahlungsbedingungen", str(h.PaymentTerms)},
		{"Lieferdatum", str(h.DeliveryDate)},
		{"Konfidenz", string(res.Confidence)},
	}

	_ = f.SetCellValue(SheetHeader, "A1", "Feld")
	_ = f.SetCellValue(SheetHeader, "B1", "Wert")
	_ = f.SetCellStyle(SheetHeader, "A1", "B1", bold)
	for i, r := range rows {
		row := i + 2
		_ = f.SetCellValue(SheetHeader, cell(1, row), r.label)
		_ = f.SetCellValue(SheetHeader, cell(2, row), r.value)
	}
	_ = f.SetColWidth(SheetHeader, "A", "A", 24)
	_ = f.SetColWidth(SheetHeader, "B", "B", 48)
}

func writeItemsSheet(f *excelize.File, res *entity.AnalysisResult, bold, money int) {
	for i, h := range itemColumns {
		_ = f.SetCellValue(SheetItems, cell(i+1, 1), h)
	}
	_ = f.SetCellStyle(SheetItems, "A1", cell(len(itemColumns), 1), bold)

	row := 2
	for _, it := range res.LineItems {
		write := func(col int, v any) {
			_ = f.SetCellValue(SheetItems, cell(col, row), v)
		}
		write(1, it.Position)
		write(2, str(it.ArticleNumber))
		write(3, it.Description)
		write(4, it.Quantity)
		write(5, str(it.Unit))
		write(6, it.UnitPrice)
		write(7, num(it.Discount))
		write(8, it.LineTotal)
		row++
	}

	// sum row; positions may repeat, every line counts
	_ = f.SetCellValue(SheetItems, cell(7, row), "Summe")
	_ = f.SetCellValue(SheetItems, cell(8, row), res.LineTotalSum())
	_ = f.SetCellStyle(SheetItems, cell(7, row), cell(8, row), bold)
	if row > 2 {
		_ = f.SetCellStyle(SheetItems, cell(6, 2), cell(6, row-1), money)
		_ = f.SetCellStyle(SheetItems, cell(8, 2), cell(8, row-1), money)
	}

	_ = f.SetColWidth(SheetItems, "A", "A", 10)
	_ = f.SetColWidth(SheetItems, "B", "B", 18)
	_ = f.SetColWidth(SheetItems, "C", "C", 48)
	_ = f.SetColWidth(SheetItems, "D", "H", 14)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func str(p *string) any {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}
