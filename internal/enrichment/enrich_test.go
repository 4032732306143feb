package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestEnrich_DetectsFireAndHighSeverity(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{Description: "Smoke and flames near the generator, one worker taken to hospital"})

	assert.Equal(t, "fire", res.Fields.IncidentType)
	assert.True(t, res.AutoDetectedIncidentType)
	assert.Equal(t, "high", res.Fields.Severity)
	assert.True(t, res.AutoDetectedSeverity)
	assert.Equal(t, []string{"generator"}, res.ExtractedEntities["equipment"])
	assert.Equal(t, "", res.Original.IncidentType)
}

func TestEnrich_CriticalKeywordOverridesGivenSeverity(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{Description: "Fatality reported on deck", Severity: "low"})

	assert.Equal(t, "critical", res.Fields.Severity)
	assert.True(t, res.AutoDetectedSeverity)
	assert.Equal(t, "low", res.Original.Severity)
}

func TestEnrich_KeepsExplicitValues(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{
		Description:  "Minor spill at the platform",
		IncidentType: "chemical_spill",
		Severity:     "high",
		LocationLat:  ptr(1),
		LocationLong: ptr(2),
	})

	assert.Equal(t, "chemical_spill", res.Fields.IncidentType)
	assert.False(t, res.AutoDetectedIncidentType)
	assert.Equal(t, "high", res.Fields.Severity)
	assert.False(t, res.AutoDetectedSeverity)
	assert.Equal(t, 1.0, *res.Fields.LocationLat)
	assert.False(t, res.AutoDetectedLocation)
}

func TestEnrich_Location(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{Description: "Forklift tipped over at Linden yard"})
	require.True(t, res.AutoDetectedLocation)
	assert.Equal(t, 6.0063, *res.Fields.LocationLat)
	assert.Equal(t, -58.3106, *res.Fields.LocationLong)
	assert.Equal(t, "Linden", res.LocationName)

	// У склада нет координат.
	res = Enrich(table, Fields{Description: "Box fell in the warehouse"})
	assert.False(t, res.AutoDetectedLocation)
	assert.Nil(t, res.Fields.LocationLat)
	assert.Equal(t, "Warehouse Facility", res.LocationName)
}

func TestEnrich_DefaultsWhenNothingMatches(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{Description: "Routine inspection notes"})

	assert.Equal(t, DefaultIncidentType, res.Fields.IncidentType)
	assert.Equal(t, "", res.Fields.Severity)
	assert.False(t, res.AutoDetectedSeverity)
	assert.Empty(t, res.ExtractedEntities)
	assert.Empty(t, res.RegulationViolation)
}

func TestEnrich_RegulationViolation(t *testing.T) {
	table := MustDefault()

	res := Enrich(table, Fields{Description: "Worker on scaffold with no harness and no helmet"})
	assert.Equal(t, "PPE Violation", res.RegulationViolation)
	assert.Equal(t, "PPE Violation", res.Fields.RegulationClassBroken)

	res = Enrich(table, Fields{Description: "no harness", RegulationClassBroken: "OSHA 1926"})
	assert.Empty(t, res.RegulationViolation)
	assert.Equal(t, "OSHA 1926", res.Fields.RegulationClassBroken)
}

func TestEnrich_Idempotent(t *testing.T) {
	table := MustDefault()
	in := Fields{Description: "Diesel leak from the pump at Berbice, serious contamination"}

	first := Enrich(table, in)
	again := Enrich(table, first.Original)
	assert.Equal(t, first, again)

	second := Enrich(table, first.Fields)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.ExtractedEntities, second.ExtractedEntities)
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(`
incident_types:
  - name: flood
    keywords: [WATER]
`))
	require.NoError(t, err)

	res := Enrich(table, Fields{Description: "water everywhere"})
	assert.Equal(t, "flood", res.Fields.IncidentType)

	_, err = ParseTable([]byte(`severity: {}`))
	assert.Error(t, err)
}
