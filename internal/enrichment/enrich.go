package enrichment

import "strings"

// Значения по умолчанию, когда ни одно ключевое слово не совпало.
const (
	DefaultIncidentType = "other"
	DefaultSeverity     = "medium"
)

// Fields поля отчёта, участвующие в обогащении. Тяжесть в нижнем регистре.
type Fields struct {
	Description           string
	IncidentType          string
	Severity              string
	LocationLat           *float64
	LocationLong          *float64
	RegulationClassBroken string
}

// Result итог обогащения.
type Result struct {
	Fields   Fields
	Original Fields

	AutoDetectedIncidentType bool
	AutoDetectedSeverity     bool
	AutoDetectedLocation     bool
	LocationName             string
	ExtractedEntities        map[string][]string
	RegulationViolation      string
}

// Enrich заполняет отсутствующие поля по ключевым словам описания.
// Функция чистая: без внешних вызовов, не падает, на одинаковом входе даёт одинаковый результат.
func Enrich(t *Table, in Fields) Result {
	text := strings.ToLower(in.Description)
	res := Result{
		Fields:            in,
		Original:          in,
		ExtractedEntities: map[string][]string{},
	}

	if in.IncidentType == "" || in.IncidentType == DefaultIncidentType {
		res.Fields.IncidentType = detectIncidentType(t, text)
		res.AutoDetectedIncidentType = true
	}

	if severity, ok := detectSeverity(t, text, in.Severity); ok {
		res.Fields.Severity = severity
		res.AutoDetectedSeverity = true
	}

	if in.LocationLat == nil && in.LocationLong == nil {
		if loc, ok := matchLocation(t, text); ok {
			res.LocationName = loc.Name
			if loc.Lat != nil && loc.Long != nil {
				lat, long := *loc.Lat, *loc.Long
				res.Fields.LocationLat = &lat
				res.Fields.LocationLong = &long
				res.AutoDetectedLocation = true
			}
		}
	}

	for _, g := range t.Entities {
		for _, kw := range g.Keywords {
			if strings.Contains(text, kw) {
				res.ExtractedEntities[g.Category] = append(res.ExtractedEntities[g.Category], kw)
			}
		}
	}

	if in.RegulationClassBroken == "" {
		if v := firstCategory(t.Violations, text); v != "" {
			res.Fields.RegulationClassBroken = v
			res.RegulationViolation = v
		}
	}

	return res
}

func detectIncidentType(t *Table, text string) string {
	if name := firstCategory(t.IncidentTypes, text); name != "" {
		return name
	}
	return DefaultIncidentType
}

// detectSeverity критические слова побеждают всегда; остальные уровни
// определяются только если тяжесть не задана или равна medium.
func detectSeverity(t *Table, text, current string) (string, bool) {
	if containsAny(text, t.Severity.Critical) {
		return "critical", current != "critical"
	}
	if current != "" && current != DefaultSeverity {
		return current, false
	}
	switch {
	case containsAny(text, t.Severity.High):
		return "high", true
	case containsAny(text, t.Severity.Low):
		return "low", true
	}
	return current, false
}

func matchLocation(t *Table, text string) (Location, bool) {
	for _, loc := range t.Locations {
		if strings.Contains(text, loc.Key) {
			return loc, true
		}
	}
	return Location{}, false
}

func firstCategory(cats []Category, text string) string {
	for _, c := range cats {
		if containsAny(text, c.Keywords) {
			return c.Name
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
