package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

const sheetName = "Report"

// ExcelWriter renders report rows as an XLSX workbook.
type ExcelWriter struct {
	logger *zap.Logger
}

// NewExcelWriter creates a new ExcelWriter
func NewExcelWriter(logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{logger: logger}
}

// Write emits the workbook with a bold header row followed by one row
// per task.
func (ew *ExcelWriter) Write(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		ew.logger.Warn("Failed to drop default sheet", zap.Error(err))
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.ColumnNumberToName(len(Header()))
		if serr := f.SetCellStyle(sheetName, "A1", last+"1", headerStyle); serr != nil {
			ew.logger.Warn("Failed to style header row", zap.Error(serr))
		}
	}

	for col, name := range Header() {
		ew.setCell(f, col+1, 1, name)
	}
	for i, r := range rows {
		rowNum := i + 2
		values := []interface{}{
			r.TaskID, r.Title, r.Type, r.Assignee, r.Status,
			r.SLAStart, r.SLAEnd, r.CheckInAt, r.CheckOutAt, r.SLABreached,
			r.Items,
		}
		for _, c := range entity.Categories() {
			values = append(values, r.Categories[c])
		}
		values = append(values, r.Total, r.Pending, r.Approved, r.Rejected)
		for col, v := range values {
			ew.setCell(f, col+1, rowNum, v)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// setCell sets a cell value, logging rather than failing on error
func (ew *ExcelWriter) setCell(f *excelize.File, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		ew.logger.Warn("Invalid cell coordinates", zap.Int("col", col), zap.Int("row", row))
		return
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		ew.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
