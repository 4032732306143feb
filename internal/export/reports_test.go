package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ignatzorin/hsse-backend/internal/models"
)

func TestReportsWorkbook(t *testing.T) {
	severity := models.SeverityCritical
	lat := 6.8013
	reports := []models.Report{{
		ID:               uuid.New(),
		ReportType:       "Accident",
		Severity:         &severity,
		Status:           models.ReportStatusPending,
		EscalationStatus: models.EscalationNotRequired,
		DateOfIncident:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		LocationLat:      &lat,
		Source:           models.ReportSourcePublic,
		CreatedAt:        time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
	}}

	data, err := ReportsWorkbook(reports)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	header, err := f.GetCellValue(SheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Report Type", header)

	id, err := f.GetCellValue(SheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, reports[0].ID.String(), id)

	sev, err := f.GetCellValue(SheetName, "D2")
	require.NoError(t, err)
	assert.Equal(t, "Critical", sev)

	date, err := f.GetCellValue(SheetName, "G2")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", date)
}

func TestReportsWorkbook_Empty(t *testing.T) {
	data, err := ReportsWorkbook(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
