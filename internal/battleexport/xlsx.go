package battleexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ragrace/internal/domain"
)

const sheetName = "Battles"

// WriteXLSX writes items as a single-sheet workbook to w.
func WriteXLSX(w io.Writer, items []domain.BattleHistoryItem) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("opening stream writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(columns)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(Row(&items[i]))); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
