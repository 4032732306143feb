package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

// SheetName имя листа реестра.
const SheetName = "Reports"

var reportHeaders = []string{
	"ID", "Report Type", "Incident Type", "Severity", "Status", "Escalation", "Date of Incident",
	"Industry", "Reporter", "Contact", "Latitude", "Longitude", "Source", "Created At",
}

var columnWidths = []float64{38, 22, 20, 12, 14, 14, 16, 18, 24, 22, 12, 12, 10, 20}

// ReportsWorkbook строит .xlsx с реестром отчётов.
func ReportsWorkbook(reports []models.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("export: создание листа: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export: удаление листа: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("export: стиль заголовка: %w", err)
	}

	for i, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return nil, fmt.Errorf("export: заголовок %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("export: стиль %s: %w", cell, err)
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, col, col, columnWidths[i]); err != nil {
			return nil, fmt.Errorf("export: ширина колонки: %w", err)
		}
	}

	for i := range reports {
		r := &reports[i]
		values := []any{
			r.ID.String(),
			r.ReportType,
			deref(r.IncidentType),
			deref(r.Severity),
			r.Status,
			r.EscalationStatus,
			r.DateOfIncident.Format("2006-01-02"),
			deref(r.Industry),
			deref(r.ReporterName),
			deref(r.ReporterContact),
			floatOrEmpty(r.LocationLat),
			floatOrEmpty(r.LocationLong),
			r.Source,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("export: строка %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("export: закрепление заголовка: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export: запись: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(f *float64) any {
	if f == nil {
		return ""
	}
	return *f
}
