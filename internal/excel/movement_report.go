package excel

import (
	"fmt"
	"io"
	"time"

	"stockledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	SheetMovements = "Movements"
	SheetSuppliers = "Suppliers"

	dateLayout = "2006-01-02 15:04"
)

var movementHeader = []any{
	"Date", "Type", "Qty", "Reference", "Reference No", "Supplier", "Unit Cost", "Unit Price", "Reason", "Notes", "By",
}

var supplierHeader = []any{
	"Supplier", "Total Qty", "Purchases", "Total Cost", "Avg Unit Cost", "Last Purchased",
}

// WriteMovementReport writes the report as an xlsx workbook with a movement
// sheet, newest first, and a supplier summary sheet.
func WriteMovementReport(w io.Writer, report domain.MovementReport) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetMovements); err != nil {
		return fmt.Errorf("name movements sheet: %w", err)
	}
	if _, err := file.NewSheet(SheetSuppliers); err != nil {
		return fmt.Errorf("create suppliers sheet: %w", err)
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	v := report.Variant
	title := []any{"SKU", v.SKU, "Barcode", v.Barcode, "Stock", v.StockQty, "Avg Cost", v.AvgCost, "Net Movement", report.NetQty}
	if err := file.SetSheetRow(SheetMovements, "A1", &title); err != nil {
		return fmt.Errorf("write title row: %w", err)
	}
	if err := writeHeader(file, SheetMovements, 3, movementHeader, bold); err != nil {
		return err
	}
	for i, m := range report.Movements {
		row := []any{
			m.Date.UTC().Format(dateLayout),
			string(m.Type),
			m.Qty,
			m.ReferenceID,
			deref(m.ReferenceNo),
			deref(m.SupplierName),
			derefFloat(m.UnitCost),
			derefFloat(m.UnitPrice),
			derefReason(m.Reason),
			deref(m.Notes),
			m.Actor,
		}
		if err := setRow(file, SheetMovements, i+4, row); err != nil {
			return err
		}
	}

	if err := writeHeader(file, SheetSuppliers, 1, supplierHeader, bold); err != nil {
		return err
	}
	for i, s := range report.Suppliers {
		row := []any{
			s.SupplierName,
			s.TotalQty,
			s.PurchaseCount,
			s.TotalCost,
			s.AvgUnitCost,
			formatDate(s.LastPurchasedAt),
		}
		if err := setRow(file, SheetSuppliers, i+2, row); err != nil {
			return err
		}
	}

	if err := file.SetColWidth(SheetMovements, "A", "K", 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := file.SetColWidth(SheetSuppliers, "A", "F", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeHeader(file *excelize.File, sheet string, row int, header []any, style int) error {
	if err := setRow(file, sheet, row, header); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(header), row)
	if err := file.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func setRow(file *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}

func derefReason(r *domain.AdjustmentReason) string {
	if r == nil {
		return ""
	}
	return string(*r)
}
