package enrichment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Category именованная группа ключевых слов.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Location запись справочника мест. Координаты есть не у всех записей.
type Location struct {
	Key  string   `yaml:"key"`
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat"`
	Long *float64 `yaml:"long"`
}

// EntityGroup список сущностей одной категории.
type EntityGroup struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// SeverityKeywords ключевые слова по уровням тяжести.
type SeverityKeywords struct {
	Critical []string `yaml:"critical"`
	High     []string `yaml:"high"`
	Low      []string `yaml:"low"`
}

// Table неизменяемая после загрузки таблица ключевых слов.
type Table struct {
	IncidentTypes []Category       `yaml:"incident_types"`
	Severity      SeverityKeywords `yaml:"severity"`
	Locations     []Location       `yaml:"locations"`
	Entities      []EntityGroup    `yaml:"entities"`
	Violations    []Category       `yaml:"violations"`
}

// LoadTable читает таблицу из файла path или встроенную, если path пуст.
func LoadTable(path string) (*Table, error) {
	data := defaultKeywords
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("enrichment: read %s: %w", path, err)
		}
		data = b
	}
	return ParseTable(data)
}

// ParseTable разбирает YAML и приводит ключевые слова к нижнему регистру.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("enrichment: parse keywords: %w", err)
	}
	if len(t.IncidentTypes) == 0 {
		return nil, fmt.Errorf("enrichment: incident_types пуст")
	}

	for i := range t.IncidentTypes {
		lowerAll(t.IncidentTypes[i].Keywords)
	}
	for i := range t.Violations {
		lowerAll(t.Violations[i].Keywords)
	}
	for i := range t.Entities {
		lowerAll(t.Entities[i].Keywords)
	}
	for i := range t.Locations {
		t.Locations[i].Key = strings.ToLower(t.Locations[i].Key)
	}
	lowerAll(t.Severity.Critical)
	lowerAll(t.Severity.High)
	lowerAll(t.Severity.Low)
	return &t, nil
}

// MustDefault встроенная таблица; паника означает повреждённый keywords.yaml в сборке.
func MustDefault() *Table {
	t, err := ParseTable(defaultKeywords)
	if err != nil {
		panic(err)
	}
	return t
}

func lowerAll(words []string) {
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
}
