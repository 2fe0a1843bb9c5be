// Package resources is the directory of local cardiac care resources.
package resources

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"heart-insights/internal/i18n"

	"gopkg.in/yaml.v3"
)

// ErrUnknownCity is returned for cities outside the directory.
var ErrUnknownCity = errors.New("unknown city")

//go:embed cities.yaml
var citiesYAML []byte

// Contact is an emergency service and its phone number.
type Contact struct {
	Name   string `yaml:"name" json:"name"`
	Number string `yaml:"number" json:"number"`
}

// City lists the resources of one city.
type City struct {
	Name                  string    `yaml:"name" json:"name"`
	Emergency             []Contact `yaml:"emergency" json:"emergency"`
	Hospitals             []string  `yaml:"hospitals" json:"hospitals"`
	ClinicsAndDiagnostics []string  `yaml:"clinics_and_diagnostics" json:"clinics_and_diagnostics,omitempty"`
	DietAndRehab          []string  `yaml:"diet_and_rehab" json:"diet_and_rehab,omitempty"`
	NGOs                  []string  `yaml:"ngos" json:"ngos"`
}

// Section is a localized heading with its entries.
type Section struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Entries []string `json:"entries"`
}

// Directory holds every city in file order.
type Directory struct {
	cities []City
	byName map[string]int
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
	defaultErr  error
)

// Default returns the embedded directory.
func Default() (*Directory, error) {
	defaultOnce.Do(func() {
		defaultDir, defaultErr = Parse(citiesYAML)
	})
	return defaultDir, defaultErr
}

// Parse reads a directory from YAML.
func Parse(data []byte) (*Directory, error) {
	var doc struct {
		Cities []City `yaml:"cities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse resource directory: %w", err)
	}

	d := &Directory{byName: make(map[string]int, len(doc.Cities))}
	for _, c := range doc.Cities {
		if c.Name == "" {
			return nil, errors.New("parse resource directory: city without a name")
		}
		key := strings.ToLower(c.Name)
		if _, dup := d.byName[key]; dup {
			return nil, fmt.Errorf("parse resource directory: duplicate city %q", c.Name)
		}
		d.byName[key] = len(d.cities)
		d.cities = append(d.cities, c)
	}
	return d, nil
}

// Names returns the city names in directory order.
func (d *Directory) Names() []string {
	names := make([]string, len(d.cities))
	for i, c := range d.cities {
		names[i] = c.Name
	}
	return names
}

// Cities returns every city in directory order.
func (d *Directory) Cities() []City {
	out := make([]City, len(d.cities))
	copy(out, d.cities)
	return out
}

// Lookup finds a city by name, ignoring case.
func (d *Directory) Lookup(name string) (City, error) {
	i, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return d.cities[i], nil
}

// Sections renders a city as localized sections in display order. Empty
// optional sections are omitted; government programmes come from the catalog.
func (c City) Sections(t i18n.Translator) []Section {
	emergency := make([]string, len(c.Emergency))
	for i, e := range c.Emergency {
		emergency[i] = e.Name + ": " + e.Number
	}

	candidates := []struct {
		key     string
		entries []string
	}{
		{"res_section_emergency", emergency},
		{"res_section_hospitals", c.Hospitals},
		{"res_section_clinics_and_diagnostics", c.ClinicsAndDiagnostics},
		{"res_section_diet_and_rehab", c.DietAndRehab},
		{"res_section_programs", Programmes(t)},
		{"res_section_ngos", c.NGOs},
	}

	sections := make([]Section, 0, len(candidates))
	for _, s := range candidates {
		if len(s.entries) == 0 {
			continue
		}
		sections = append(sections, Section{Key: s.key, Title: t.T(s.key), Entries: s.entries})
	}
	return sections
}

// Programmes returns the national health programme notices.
func Programmes(t i18n.Translator) []string {
	return []string{t.T("res_info_ayushman"), t.T("res_info_npcdcs")}
}
