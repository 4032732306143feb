package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateIncidentDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateIncidentDate(now, now))
	assert.NoError(t, ValidateIncidentDate(now.AddDate(0, 0, -1), now))
	assert.Error(t, ValidateIncidentDate(now.AddDate(0, 0, 1), now), "завтрашняя дата")
	assert.Error(t, ValidateIncidentDate(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.NoError(t, ValidateIncidentDate(time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC), now))
	assert.Error(t, ValidateIncidentDate(time.Time{}, now))
}

func TestValidateReporterName(t *testing.T) {
	assert.NoError(t, ValidateReporterName(""))
	assert.NoError(t, ValidateReporterName("John Smith"))
	assert.Error(t, ValidateReporterName("John_Smith"))
	assert.Error(t, ValidateReporterName("Иван"))
	assert.Error(t, ValidateReporterName("R2D2"))
}

func TestValidateCoordinates(t *testing.T) {
	ok, badLat, badLong := 45.0, 91.0, -181.0
	assert.NoError(t, ValidateLatitude(nil))
	assert.NoError(t, ValidateLatitude(&ok))
	assert.Error(t, ValidateLatitude(&badLat))
	assert.NoError(t, ValidateLongitude(&ok))
	assert.Error(t, ValidateLongitude(&badLong))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("Safety.Officer@Example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("a@b@c.com"))
	assert.Error(t, ValidateEmail("user@localhost"))
}

func TestValidateLengthCountsRunes(t *testing.T) {
	assert.NoError(t, ValidateLength("причина", "десять сим", 10, 0))
	assert.Error(t, ValidateLength("причина", "коротко", 10, 0))
	assert.Error(t, ValidateLength("описание", strings.Repeat("a", 5001), 0, 5000))
}

func TestErrorsKeepsFirstMessage(t *testing.T) {
	e := Errors{}
	e.Check("description", nil)
	assert.True(t, e.Empty())

	e.Add("description", "первое")
	e.Add("description", "второе")
	assert.Equal(t, "первое", e["description"])
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	assert.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	_, err = ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("password1"))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 73)))
}
