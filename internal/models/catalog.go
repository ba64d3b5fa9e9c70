package models

import "strings"

// CategorySpec defines one catalog category and the units its items accept.
type CategorySpec struct {
	Name  string   `yaml:"name" json:"name"`
	Units []string `yaml:"units" json:"units"`
}

// Catalog is the closed set of item categories with their allowed units.
// A deployment may override it with a YAML side file (configs/catalog.yaml).
type Catalog struct {
	Categories []CategorySpec `yaml:"categories" json:"categories"`
}

// DefaultCatalog returns the built-in category set used when no catalog
// file is configured.
func DefaultCatalog() Catalog {
	common := []string{"шт", "г", "кг", "мл", "л", "упак"}
	return Catalog{Categories: []CategorySpec{
		{Name: "Молочное", Units: common},
		{Name: "Мясо", Units: []string{"г", "кг", "шт", "упак"}},
		{Name: "Рыба", Units: []string{"г", "кг", "шт", "упак"}},
		{Name: "Овощи", Units: []string{"шт", "г", "кг", "упак"}},
		{Name: "Фрукты", Units: []string{"шт", "г", "кг", "упак"}},
		{Name: "Выпечка", Units: []string{"шт", "г", "упак"}},
		{Name: "Крупы", Units: []string{"г", "кг", "упак"}},
		{Name: "Напитки", Units: []string{"мл", "л", "шт", "упак"}},
		{Name: "Соусы", Units: []string{"мл", "л", "г", "шт", "упак"}},
		{Name: "Заморозка", Units: common},
		{Name: "Консервы", Units: []string{"шт", "г", "упак"}},
		{Name: "Прочее", Units: common},
	}}
}

func (c Catalog) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, spec := range c.Categories {
		names = append(names, spec.Name)
	}
	return names
}

func (c Catalog) ValidCategory(name string) bool {
	name = strings.TrimSpace(name)
	for _, spec := range c.Categories {
		if strings.EqualFold(spec.Name, name) {
			return true
		}
	}
	return false
}

// CanonicalCategory maps a case-insensitive match back to the catalog
// spelling, so items and groups store a single canonical form.
func (c Catalog) CanonicalCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, spec := range c.Categories {
		if strings.EqualFold(spec.Name, name) {
			return spec.Name, true
		}
	}
	return "", false
}

func (c Catalog) AllowedUnits(category string) []string {
	category = strings.TrimSpace(category)
	for _, spec := range c.Categories {
		if strings.EqualFold(spec.Name, category) {
			return spec.Units
		}
	}
	return nil
}

// ValidUnit reports whether the unit belongs to the category's allowed set.
// Matching ignores case and surrounding whitespace.
func (c Catalog) ValidUnit(category, unit string) bool {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return false
	}
	for _, allowed := range c.AllowedUnits(category) {
		if strings.EqualFold(allowed, unit) {
			return true
		}
	}
	return false
}
