// Package seriesstore holds chart series that are mutated point by point,
// independently of the data attribute.
package seriesstore

import (
	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
)

// Record is one named series. Category positions without a value hold nil,
// which serializes as JSON null.
type Record struct {
	Name  string `json:"name"`
	Data  []any  `json:"data"`
	Color string `json:"color,omitempty"`
}

// Store is an ordered series map plus ordered category and color lists.
// It is not safe for concurrent use; the owning component serializes access.
type Store struct {
	order      []string
	series     map[string]*Record
	categories []string
	colors     []string
}

func New() *Store {
	return &Store{series: map[string]*Record{}}
}

// AddSeries replaces or creates a series wholesale.
func (s *Store) AddSeries(name, color string, values []any) {
	r := s.ensure(name)
	r.Data = append([]any(nil), values...)
	r.Color = color
}

// AddSeriesValue sets the single value of a series, keeping its color.
func (s *Store) AddSeriesValue(name string, v any) {
	r := s.ensure(name)
	r.Data = []any{v}
}

// AddSeriesCategoryValue writes v at the position of category. A new series
// is first filled with a placeholder per known category. Unknown categories
// write nothing and report false.
func (s *Store) AddSeriesCategoryValue(name, category string, v any) bool {
	r, ok := s.series[name]
	if !ok {
		r = s.ensure(name)
		r.Data = make([]any, len(s.categories))
	}
	idx := s.categoryIndex(category)
	if idx < 0 {
		return false
	}
	for len(r.Data) <= idx {
		r.Data = append(r.Data, nil)
	}
	r.Data[idx] = v
	return true
}

// AddCategory appends a category. Existing series are not resized; Materialize
// pads them.
func (s *Store) AddCategory(name string) {
	s.categories = append(s.categories, name)
}

func (s *Store) AddCategories(names []string) {
	s.categories = append(s.categories, names...)
}

// SetSeriesColor reports false when the series does not exist.
func (s *Store) SetSeriesColor(name, color string) bool {
	r, ok := s.series[name]
	if !ok {
		return false
	}
	r.Color = color
	return true
}

func (s *Store) AddColors(colors []string) {
	s.colors = append(s.colors, colors...)
}

// Clear empties series, categories and colors.
func (s *Store) Clear() {
	s.order = nil
	s.series = map[string]*Record{}
	s.categories = nil
	s.colors = nil
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Empty() bool {
	return len(s.order) == 0 && len(s.categories) == 0 && len(s.colors) == 0
}

// Series returns a copy of the named record.
func (s *Store) Series(name string) (Record, bool) {
	r, ok := s.series[name]
	if !ok {
		return Record{}, false
	}
	return Record{Name: r.Name, Data: append([]any(nil), r.Data...), Color: r.Color}, true
}

func (s *Store) Names() []string { return append([]string(nil), s.order...) }

func (s *Store) Categories() []string { return append([]string(nil), s.categories...) }

func (s *Store) Colors() []string { return append([]string(nil), s.colors...) }

// Materialize converts the store into a canonical series set for family.
// Array series are padded with placeholders to the category count; collapsing
// families take the first value of each series.
func (s *Store) Materialize(family chart.Family) chart.SeriesSet {
	out := chart.SeriesSet{Family: family}
	for _, name := range s.order {
		r := s.series[name]
		se := chart.Series{Name: r.Name, Color: r.Color}
		if family.Collapses() {
			if len(r.Data) > 0 {
				se.Value = r.Data[0]
			}
		} else {
			data := append([]any(nil), r.Data...)
			for len(data) < len(s.categories) {
				data = append(data, nil)
			}
			if data == nil {
				data = []any{}
			}
			se.Data = data
		}
		out.Series = append(out.Series, se)
	}
	return out
}

func (s *Store) ensure(name string) *Record {
	if r, ok := s.series[name]; ok {
		return r
	}
	r := &Record{Name: name}
	s.series[name] = r
	s.order = append(s.order, name)
	return r
}

func (s *Store) categoryIndex(category string) int {
	for i, c := range s.categories {
		if c == category {
			return i
		}
	}
	return -1
}
