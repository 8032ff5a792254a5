// Package excel reads opening-stock sheets and writes movement reports as
// workbooks.
package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"stockledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"code":          "code",
	"sku":           "code",
	"barcode":       "code",
	"item code":     "code",
	"variant code":  "code",
	"qty":           "qty",
	"quantity":      "qty",
	"opening qty":   "qty",
	"opening stock": "qty",
	"stock":         "qty",
	"notes":         "notes",
	"note":          "notes",
	"remarks":       "notes",
}

var devanagariDigits = strings.NewReplacer(
	"०", "0",
	"१", "1",
	"२", "2",
	"३", "3",
	"४", "4",
	"५", "5",
	"६", "6",
	"७", "7",
	"८", "8",
	"९", "9",
)

// ParseOpeningStockFile reads the first sheet of an xlsx workbook or a CSV
// file. The format comes from the file extension; without one, xlsx is tried
// before CSV. Row numbers in the result are 1-based sheet rows.
func ParseOpeningStockFile(fileName string, reader io.Reader) ([]domain.OpeningStockRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.Validationf("input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(strings.TrimSpace(filepath.Ext(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	case ".xlsx", ".xlsm":
		rows, err = parseExcelRows(data)
	default:
		rows, err = parseExcelRows(data)
		if err != nil {
			rows, err = parseCSVRows(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return parseOpeningStockTable(rows)
}

func parseOpeningStockTable(rows [][]string) ([]domain.OpeningStockRow, error) {
	if len(rows) == 0 {
		return nil, domain.Validationf("sheet is empty")
	}

	colMap := mapColumns(rows[0])
	for _, required := range []string{"code", "qty"} {
		if _, ok := colMap[required]; !ok {
			return nil, domain.Validationf("missing required column: %s", required)
		}
	}

	result := make([]domain.OpeningStockRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		code := strings.TrimSpace(readCell(cells, colMap["code"]))
		if code == "" {
			continue
		}

		qty, err := parseInt(readCell(cells, colMap["qty"]))
		if err != nil {
			return nil, domain.Validationf("row %d invalid qty: %v", index+1, err)
		}

		row := domain.OpeningStockRow{RowNumber: index + 1, Code: code, Qty: qty}
		if idx, ok := colMap["notes"]; ok {
			if value := strings.TrimSpace(readCell(cells, idx)); value != "" {
				row.Notes = &value
			}
		}
		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, domain.Validationf("file has no data rows")
	}
	return result, nil
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, domain.Validationf("read csv rows: %v", err)
	}
	if len(rows) == 0 {
		return nil, domain.Validationf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Validationf("open excel file: %v", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.Validationf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.Validationf("excel file is empty")
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	value = devanagariDigits.Replace(value)
	value = strings.ReplaceAll(value, ",", "")
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	if asFloat > math.MaxInt32 || asFloat < math.MinInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return int(asFloat), nil
}
