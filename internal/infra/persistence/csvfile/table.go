// Package csvfile persists the catalog as a flat CSV table, one record per
// row, replaced wholesale on every commit. The column set and ordering are an
// external contract shared with the upstream grocery dataset.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"shelfstock/pkg/domain"
)

// Table header in contract order. "Catagory" preserves the upstream dataset's
// spelling; DecodeTable also accepts the corrected form.
var tableHeader = []string{
	"Product_ID",
	"Product_Name",
	"Catagory",
	"Unit_Price",
	"Stock_Quantity",
	"Sales_Volume",
}

var headerAliases = map[string]string{
	"product_id":     "Product_ID",
	"id":             "Product_ID",
	"product_name":   "Product_Name",
	"name":           "Product_Name",
	"catagory":       "Catagory",
	"category":       "Catagory",
	"unit_price":     "Unit_Price",
	"price":          "Unit_Price",
	"stock_quantity": "Stock_Quantity",
	"inventory":      "Stock_Quantity",
	"sales_volume":   "Sales_Volume",
	"sold":           "Sales_Volume",
}

// EncodeTable renders records as the persisted CSV table, preserving store
// order. Prices are written in currency-symbol-free numeric form.
func EncodeTable(records []domain.Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(tableHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.DisplayName,
			r.Category,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.Itoa(r.Inventory),
			strconv.Itoa(r.Sold),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTable parses a persisted CSV table into records in row order.
// Categories are trimmed, prices may carry a leading currency symbol, and
// non-numeric or missing inventory/sold values load as 0.
func DecodeTable(data []byte) ([]domain.Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		canonical, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		columns[canonical] = i
	}
	for _, required := range tableHeader {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		field := func(name string) string {
			idx := columns[name]
			if idx >= len(row) {
				return ""
			}
			return row[idx]
		}
		price, err := parsePrice(field("Unit_Price"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		records = append(records, domain.Record{
			ID:          strings.TrimSpace(field("Product_ID")),
			DisplayName: field("Product_Name"),
			Category:    strings.TrimSpace(field("Catagory")),
			Price:       price,
			Inventory:   parseCount(field("Stock_Quantity")),
			Sold:        parseCount(field("Sales_Volume")),
		})
	}
	return records, nil
}

func parsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "$", ""))
	if s == "" {
		return 0, nil
	}
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %q", raw)
	}
	return price, nil
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
