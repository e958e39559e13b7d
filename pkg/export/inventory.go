// Package export renders flat tables as Excel workbooks.
package export

import (
	"bytes"
	"fmt"

	"BloodLink/pkg/flatstore"

	"github.com/xuri/excelize/v2"
)

const InventorySheet = "Inventory"

var InventoryHeader = []string{"Blood Group", "Component", "Blood Group ID", "Component ID", "Units Available", "Status"}

// GenerateInventoryExport writes one row per inventory entry. Rows below
// their component's threshold are marked "Low" and highlighted.
func GenerateInventoryExport(rows []flatstore.Row, threshold func(component string) int) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(InventorySheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	lowStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create low-stock style: %w", err)
	}

	for col, header := range InventoryHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(InventorySheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(InventoryHeader), 1)
	if err := f.SetCellStyle(InventorySheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(InventorySheet, "A", "F", 18); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, r := range rows {
		line := i + 2
		units := flatstore.IntOr(r, "units_available", 0)
		status := "OK"
		if threshold != nil && units < threshold(r["component"]) {
			status = "Low"
		}
		values := []interface{}{r["blood_group"], r["component"], r["blood_group_id"], r["component_id"], units, status}
		for col, v := range values {
			if err := setCellValue(f, InventorySheet, col+1, line, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", line, col+1, err)
			}
		}
		if status == "Low" {
			from, _ := excelize.CoordinatesToCellName(1, line)
			to, _ := excelize.CoordinatesToCellName(len(InventoryHeader), line)
			if err := f.SetCellStyle(InventorySheet, from, to, lowStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to style row %d: %w", line, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(InventorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
