package chart

import (
	"strings"

	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

// Kind is a supported chart type as named on the type attribute.
type Kind string

const (
	KindLine      Kind = "line"
	KindArea      Kind = "area"
	KindColumn    Kind = "column"
	KindBar       Kind = "bar"
	KindPie       Kind = "pie"
	KindDonut     Kind = "donut"
	KindRadialBar Kind = "radialBar"
	KindPolarArea Kind = "polarArea"
	KindRadar     Kind = "radar"
	KindScatter   Kind = "scatter"
)

var kindAliases = map[string]Kind{
	"line":           KindLine,
	"area":           KindArea,
	"column":         KindColumn,
	"bar":            KindBar,
	"horizontal-bar": KindBar,
	"pie":            KindPie,
	"donut":          KindDonut,
	"radialbar":      KindRadialBar,
	"radial-bar":     KindRadialBar,
	"polararea":      KindPolarArea,
	"polar-area":     KindPolarArea,
	"radar":          KindRadar,
	"scatter":        KindScatter,
}

// Engine chart types the system recognizes but cannot build.
var unsupportedKinds = map[string]struct{}{
	"bubble":      {},
	"heatmap":     {},
	"treemap":     {},
	"candlestick": {},
	"boxplot":     {},
	"rangebar":    {},
	"rangearea":   {},
}

// ResolveKind maps a type attribute value to a Kind. Absent or unknown
// values fall back to line; recognized-but-unsupported types fail.
func ResolveKind(t string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(t))
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	if _, ok := unsupportedKinds[key]; ok {
		return "", cerr.Newf(cerr.ChartUnsupportedType, "Chart type %q is not supported yet", t)
	}
	return KindLine, nil
}

// LegendPolicy decides legend visibility from show-legend and the series count.
type LegendPolicy int

const (
	// LegendAuto hides single-series legends unless show-legend="true".
	LegendAuto LegendPolicy = iota
	// LegendOptOut shows unless show-legend="false".
	LegendOptOut
	// LegendOptIn shows only when show-legend="true".
	LegendOptIn
)

func (p LegendPolicy) visible(st *State, seriesCount int) bool {
	switch p {
	case LegendOptOut:
		return st.NotFalse(AttrShowLegend)
	case LegendOptIn:
		return st.IsTrue(AttrShowLegend) && st.String(AttrLegendPosition, "") != "hidden"
	default:
		return st.IsTrue(AttrShowLegend) || (st.NotFalse(AttrShowLegend) && seriesCount > 1)
	}
}

// Descriptor is the per-type table entry the generic builder is parameterized by.
type Descriptor struct {
	Kind       Kind
	EngineType string
	Family     Family
	Legend     LegendPolicy

	// Axes: titles, rotation, categories and output formats apply.
	Axes bool
	// Curve and StrokeWidth: stroke.curve and the default stroke width (0 = none).
	Curve       bool
	StrokeWidth int
	// LineWidth: line-width overrides the stroke width.
	LineWidth bool
	// Markers: marker-size applies.
	Markers bool
	// Bars: plotOptions.bar radius/width/stacking apply.
	Bars       bool
	Horizontal bool
	// DashSeries: per-series dashed flags map to stroke.dashArray.
	DashSeries bool
	// Gradient: the gradient toggle applies.
	Gradient bool
	// Stackable: stacked="true" applies.
	Stackable bool
	// SortByValue: values are reordered descending before rendering.
	SortByValue bool
	// SeriesLegendColors: legend labels use series colors by default.
	SeriesLegendColors bool

	// defaults returns the family option layer.
	defaults func() map[string]any
	// extra contributes family-only attribute-derived options.
	extra func(st *State) map[string]any
}

var descriptors = map[Kind]*Descriptor{
	KindLine: {
		Kind: KindLine, EngineType: "line", Family: FamilyCartesian, Legend: LegendAuto,
		Axes: true, Curve: true, StrokeWidth: 3, LineWidth: true, Markers: true,
		DashSeries: true, Gradient: true, Stackable: true,
		defaults: lineDefaults,
	},
	KindArea: {
		Kind: KindArea, EngineType: "area", Family: FamilyCartesian, Legend: LegendAuto,
		Axes: true, Curve: true, StrokeWidth: 2, Markers: true,
		DashSeries: true, Gradient: true, Stackable: true,
		defaults: areaDefaults,
	},
	KindColumn: {
		Kind: KindColumn, EngineType: "bar", Family: FamilyCartesian, Legend: LegendAuto,
		Axes: true, Curve: true, StrokeWidth: 2, Bars: true, Gradient: true, Stackable: true,
		defaults: columnDefaults,
	},
	KindBar: {
		Kind: KindBar, EngineType: "bar", Family: FamilyCartesian, Legend: LegendAuto,
		Axes: true, Bars: true, Horizontal: true, Gradient: true, Stackable: true,
		defaults: barDefaults, extra: barExtra,
	},
	KindScatter: {
		Kind: KindScatter, EngineType: "scatter", Family: FamilyCartesian, Legend: LegendOptOut,
		Axes: true, Curve: true, StrokeWidth: 2, Markers: true, Gradient: true,
		SeriesLegendColors: true,
		defaults: scatterDefaults,
	},
	KindRadar: {
		Kind: KindRadar, EngineType: "radar", Family: FamilyRadar, Legend: LegendAuto,
		Axes: true, StrokeWidth: 2, Markers: true,
		defaults: radarDefaults,
	},
	KindPie: {
		Kind: KindPie, EngineType: "pie", Family: FamilyCircular, Legend: LegendOptOut,
		Gradient: true,
		defaults: pieDefaults, extra: angleExtra,
	},
	KindDonut: {
		Kind: KindDonut, EngineType: "donut", Family: FamilyCircular, Legend: LegendOptOut,
		Gradient: true,
		defaults: donutDefaults, extra: donutExtra,
	},
	KindRadialBar: {
		Kind: KindRadialBar, EngineType: "radialBar", Family: FamilyRadial, Legend: LegendOptIn,
		Gradient: true,
		defaults: radialDefaults, extra: radialExtra,
	},
	KindPolarArea: {
		Kind: KindPolarArea, EngineType: "polarArea", Family: FamilyPolar, Legend: LegendOptOut,
		SortByValue: true,
		defaults: polarDefaults,
	},
}

// DescriptorFor returns the descriptor for a kind.
func DescriptorFor(k Kind) (*Descriptor, bool) {
	d, ok := descriptors[k]
	return d, ok
}

// horizontal reports bar orientation; columns switch via bar-orientation.
func (d *Descriptor) horizontal(st *State) bool {
	if d.Kind == KindColumn {
		return st.String(AttrBarOrientation, "vertical") == "horizontal"
	}
	return d.Horizontal
}

// Kinds lists supported kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindLine, KindArea, KindColumn, KindBar, KindPie, KindDonut, KindRadialBar, KindPolarArea, KindRadar, KindScatter}
}

// FamilyOf resolves the family used for the type attribute value t.
func FamilyOf(t string) Family {
	k, err := ResolveKind(t)
	if err != nil {
		return FamilyCartesian
	}
	return descriptors[k].Family
}
