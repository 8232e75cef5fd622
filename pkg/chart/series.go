package chart

import (
	"encoding/json"
)

// Family groups chart types that share a series model.
type Family string

const (
	FamilyCartesian Family = "cartesian"
	FamilyCircular  Family = "circular"
	FamilyRadial    Family = "radial"
	FamilyPolar     Family = "polar"
	FamilyRadar     Family = "radar"
)

// Collapses reports whether each series carries a single value.
func (f Family) Collapses() bool {
	return f == FamilyCircular || f == FamilyRadial || f == FamilyPolar
}

// Point is an {x, y} datum.
type Point struct {
	X any `json:"x"`
	Y any `json:"y"`
}

// Series is one canonical descriptor. Cartesian and radar series use Data;
// circular, radial and polar series use Value.
type Series struct {
	Name   string
	Data   []any
	Value  any
	Color  string
	Dashed bool
}

type SeriesSet struct {
	Family Family
	Series []Series
}

func (s SeriesSet) Len() int { return len(s.Series) }

func (s SeriesSet) Empty() bool { return len(s.Series) == 0 }

// Names returns the series names in order.
func (s SeriesSet) Names() []string {
	out := make([]string, len(s.Series))
	for i, se := range s.Series {
		out[i] = se.Name
	}
	return out
}

// Colors returns the non-empty series colors in order.
func (s SeriesSet) Colors() []string {
	var out []string
	for _, se := range s.Series {
		if se.Color != "" {
			out = append(out, se.Color)
		}
	}
	return out
}

// Values returns the collapsed value of each series.
func (s SeriesSet) Values() []any {
	out := make([]any, len(s.Series))
	for i, se := range s.Series {
		out[i] = se.Value
	}
	return out
}

type seriesWire struct {
	Name   string `json:"name"`
	Data   []any  `json:"data"`
	Color  string `json:"color,omitempty"`
	Dashed bool   `json:"dashed,omitempty"`
}

// Render returns the value handed to the rendering engine: a flat value
// list for collapsing families, a list of {name, data} objects otherwise.
func (s SeriesSet) Render() any {
	if s.Family.Collapses() {
		return s.Values()
	}
	out := make([]seriesWire, len(s.Series))
	for i, se := range s.Series {
		data := se.Data
		if data == nil {
			data = []any{}
		}
		out[i] = seriesWire{Name: se.Name, Data: data, Color: se.Color, Dashed: se.Dashed}
	}
	return out
}

func (s SeriesSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Render())
}

// ToPayload converts a canonical set back into a raw payload value that
// normalizes to the same set.
func (s SeriesSet) ToPayload() any {
	if s.Empty() {
		return []any{}
	}
	if s.Family.Collapses() && s.Series[0].Name == "" {
		return s.Values()
	}
	out := make([]any, 0, len(s.Series))
	for _, se := range s.Series {
		obj := Object{{Key: "name", Value: se.Name}}
		if s.Family.Collapses() {
			obj = append(obj, Member{Key: "data", Value: se.Value})
		} else {
			data := make([]any, len(se.Data))
			for i, d := range se.Data {
				if p, ok := d.(Point); ok {
					data[i] = Object{{Key: "x", Value: p.X}, {Key: "y", Value: p.Y}}
					continue
				}
				data[i] = d
			}
			obj = append(obj, Member{Key: "data", Value: data})
		}
		if se.Color != "" {
			obj = append(obj, Member{Key: "color", Value: se.Color})
		}
		if se.Dashed {
			obj = append(obj, Member{Key: "dashed", Value: true})
		}
		out = append(out, obj)
	}
	return out
}
