package chart

import (
	"fmt"
	"strings"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

// EmptyDataMessage is shown when a payload yields no series.
const EmptyDataMessage = "No data provided for chart"

const dashLength = 5

// Result is a complete build: the configuration and series handed to a
// rendering engine, plus the derived labels and categories.
type Result struct {
	Kind       Kind
	Descriptor *Descriptor
	Config     map[string]any
	Series     SeriesSet
	Labels     []string
	Categories []string
	// Warnings lists non-fatal input problems (malformed options, bad categories).
	Warnings []error
}

// Build derives the configuration for the current attribute state.
// Layers, lowest first: base defaults, family defaults, attribute fragment,
// structural adjustments, user options. chart.type is set last.
func Build(st *State) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = cerr.Newf(cerr.RenderFailed, "Error creating %s chart: %v", typeLabel(st), r)
		}
	}()

	kind, err := ResolveKind(st.String(AttrType, ""))
	if err != nil {
		return Result{}, err
	}
	d := descriptors[kind]
	res = Result{Kind: kind, Descriptor: d}

	raw, _ := st.Get(AttrData)
	payload, perr := ParsePayload(raw)
	if perr != nil {
		res.Warnings = append(res.Warnings, perr)
	}
	user, oerr := ParseJSONObject(st.String(AttrOptions, ""))
	if oerr != nil {
		res.Warnings = append(res.Warnings, oerr)
	}

	series := Normalize(payload, d.Family)
	if series.Empty() {
		return res, cerr.New(cerr.DataEmpty, EmptyDataMessage)
	}
	if d.Family == FamilyRadar && payload.Shape == ShapeCategoryMap {
		series.Series[0].Name = st.String(AttrTitle, DefaultSeriesName)
	}

	cats, cerrList := ParseStringList(st.String(AttrCategories, ""))
	if cerrList != nil {
		res.Warnings = append(res.Warnings, cerrList)
	}
	if d.Family == FamilyRadar && len(cats) == 0 {
		cats = payloadKeys(payload)
	}
	res.Categories = cats

	var colorsAttr []string
	if raw, ok := st.Get(AttrColors); ok {
		list, err := ParseStringList(raw)
		if err != nil {
			res.Warnings = append(res.Warnings, err)
		}
		colorsAttr = list
	}

	layers := []map[string]any{
		baseDefaults(),
		d.defaults(),
		attributeFragment(st, d, series, cats, colorsAttr, user),
		structuralFragment(st, d, user, &res.Warnings),
		user,
	}
	merged, _ := config.MergeMany(layers, config.MergeOptions{})
	cfg := config.Clone(merged)

	injectArrayAxisFormats(cfg, st, d)

	if d.Family.Collapses() {
		labels := DeriveLabels(cats, payload, series.Len())
		if d.SortByValue {
			var colors []any
			if c, ok := cfg["colors"].([]any); ok {
				colors = c
			}
			series, labels, colors = SortByValue(series, labels, colors)
			if colors != nil {
				cfg["colors"] = colors
			}
		}
		cfg["labels"] = stringsToAny(labels)
		res.Labels = labels
	}

	config.Set(cfg, "chart.type", d.EngineType)
	res.Config = cfg
	res.Series = series
	return res, nil
}

func typeLabel(st *State) string {
	t := st.String(AttrType, "")
	if t == "" {
		return string(KindLine)
	}
	return t
}

func attributeFragment(st *State, d *Descriptor, series SeriesSet, cats, colorsAttr []string, user map[string]any) map[string]any {
	out := map[string]any{}
	set := func(path string, v any) { config.Set(out, path, v) }

	set("chart.height", st.NonZeroInt(AttrHeight, 350))
	if w, ok := st.Get(AttrWidth); ok && w != "" {
		set("chart.width", dimension(w))
	}
	set("chart.toolbar.show", st.NotFalse(AttrShowToolbar))
	if theme, ok := st.Get(AttrTheme); ok && theme != "" {
		set("theme.mode", theme)
	}
	set("title.text", st.String(AttrTitle, ""))
	set("dataLabels.enabled", st.PresentNotFalse(AttrShowDataLabels))

	pos := st.String(AttrLegendPosition, "bottom")
	set("legend.show", d.Legend.visible(st, series.Len()))
	set("legend.position", pos)
	set("legend.verticalAlign", verticalAlign(d, pos))
	if d.Kind == KindScatter && pos == "right" {
		set("legend.offsetX", 10)
	}

	if d.Curve {
		set("stroke.curve", st.String(AttrCurve, "smooth"))
	}
	if d.StrokeWidth > 0 {
		w := d.StrokeWidth
		if d.LineWidth {
			w = st.NonZeroInt(AttrLineWidth, d.StrokeWidth)
		}
		set("stroke.width", w)
	}
	if d.Markers {
		set("markers.size", st.Int(AttrMarkerSize, 6))
	}
	if d.DashSeries {
		if dash, ok := dashPattern(series); ok {
			set("stroke.dashArray", dash)
		}
	}

	if d.Bars {
		set("plotOptions.bar.horizontal", d.horizontal(st))
		set("plotOptions.bar.borderRadius", borderRadius(st))
		if cw, ok := st.Get(AttrColumnWidth); ok && cw != "" {
			set("plotOptions.bar.columnWidth", cw)
		}
	}

	if d.Axes {
		if t := st.String(AttrXAxisTitle, ""); t != "" {
			set("xaxis.title", map[string]any{
				"text":    t,
				"style":   map[string]any{"fontSize": "14px", "color": "#333"},
				"offsetY": st.Int(AttrXAxisOffsetY, 2),
			})
		}
		if rot := st.Int(AttrXAxisLabelRotate, 0); rot != 0 {
			set("xaxis.position", "bottom")
			set("xaxis.labels.rotate", rot)
			set("xaxis.labels.rotateAlways", true)
			set("xaxis.labels.offsetY", st.NonZeroInt(AttrXAxisLabelRotateOffsetY, 25))
		}
		if t := st.String(AttrYAxisTitle, ""); t != "" {
			set("yaxis.title", map[string]any{
				"text":  t,
				"style": map[string]any{"fontSize": "14px", "color": "#333"},
			})
		}
		if len(cats) > 0 {
			switch {
			case d.Kind == KindBar:
				set("xaxis.categories", stringsToAny(cats))
				set("yaxis.categories", stringsToAny(cats))
			case d.Bars && d.horizontal(st):
				set("yaxis.categories", stringsToAny(cats))
			default:
				set("xaxis.categories", stringsToAny(cats))
			}
		}
	}

	if d.Stackable && st.IsTrue(AttrStacked) {
		set("chart.stacked", true)
	}

	if !hasColors(user) {
		switch {
		case len(colorsAttr) > 0:
			set("colors", stringsToAny(colorsAttr))
		case len(series.Colors()) > 0:
			set("colors", stringsToAny(series.Colors()))
			if !d.Family.Collapses() {
				set("legend.labels.useSeriesColors", true)
			}
		}
	}

	if d.Gradient && st.NotFalse(AttrGradient) {
		set("fill.type", "gradient")
	}

	if d.extra != nil {
		if extra := d.extra(st); extra != nil {
			merged, _ := config.Merge(out, extra, config.MergeOptions{})
			out = merged
		}
	}
	return out
}

// structuralFragment applies, in order: realtime, stacking, axis output
// formats, data-label orientation/position.
func structuralFragment(st *State, d *Descriptor, user map[string]any, warnings *[]error) map[string]any {
	out := map[string]any{}
	set := func(path string, v any) { config.Set(out, path, v) }

	if st.IsTrue(AttrRealtime) {
		set("dataLabels.enabled", false)
		set("markers.size", 0)
		set("chart.animations", map[string]any{
			"enabled":          true,
			"easing":           "linear",
			"dynamicAnimation": map[string]any{"speed": 1000},
		})
		set("chart.zoom.enabled", false)
	}

	if d.Stackable && st.IsTrue(AttrStacked) {
		set("plotOptions.bar.borderRadiusWhenStacked", "all")
		if d.Bars {
			set("plotOptions.bar.borderRadius", borderRadius(st))
			set("plotOptions.bar.borderRadiusApplication", "around")
			set("plotOptions.bar.startingShape", "rounded")
			set("plotOptions.bar.endingShape", "rounded")
		}
	}

	if d.Axes {
		for _, a := range []Attr{AttrXAxisOutputFormat, AttrYAxisOutputFormat} {
			if raw, ok := st.Get(a); ok {
				if _, valid := ParseOutputFormat(raw); !valid {
					*warnings = append(*warnings, cerr.Newf(cerr.AttributeInvalid, "%s: unknown output format %q", a, raw))
				}
			}
		}
		if code, ok := axisFormat(st, AttrXAxisOutputFormat); ok && !hasFormatter(user, "xaxis") {
			set("xaxis.labels.formatter", LabelFormatter{Format: code})
		}
		if code, ok := axisFormat(st, AttrYAxisOutputFormat); ok && !hasFormatter(user, "yaxis") {
			if _, isList := user["yaxis"].([]any); !isList {
				set("yaxis.labels.formatter", LabelFormatter{Format: code})
			}
		}
		if v, ok := st.Get(AttrDataLabelOrientation); ok {
			set("plotOptions.bar.dataLabels.orientation", v)
		}
		if v, ok := st.Get(AttrDataLabelPosition); ok {
			set("plotOptions.bar.dataLabels.position", v)
		}
	}
	return out
}

// injectArrayAxisFormats handles a user-supplied yaxis list: each element
// without its own formatter gets the attribute formatter.
func injectArrayAxisFormats(cfg map[string]any, st *State, d *Descriptor) {
	if !d.Axes {
		return
	}
	code, ok := axisFormat(st, AttrYAxisOutputFormat)
	if !ok {
		return
	}
	list, isList := cfg["yaxis"].([]any)
	if !isList {
		return
	}
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if _, has := config.Lookup(m, "labels.formatter"); has {
			continue
		}
		config.Set(m, "labels.formatter", LabelFormatter{Format: code})
		list[i] = m
	}
}

func axisFormat(st *State, a Attr) (OutputFormat, bool) {
	raw, ok := st.Get(a)
	if !ok {
		return "", false
	}
	code, ok := ParseOutputFormat(raw)
	if !ok || code == FormatNormal {
		return "", false
	}
	return code, true
}

func hasFormatter(user map[string]any, axis string) bool {
	switch x := user[axis].(type) {
	case map[string]any:
		_, ok := config.Lookup(x, "labels.formatter")
		return ok
	case []any:
		for _, el := range x {
			if m, ok := el.(map[string]any); ok {
				if _, ok := config.Lookup(m, "labels.formatter"); ok {
					return true
				}
			}
		}
	}
	return false
}

func hasColors(user map[string]any) bool {
	c, ok := user["colors"].([]any)
	return ok && len(c) > 0
}

func verticalAlign(d *Descriptor, pos string) string {
	switch pos {
	case "top":
		return "top"
	case "bottom":
		return "bottom"
	}
	if d.Kind == KindScatter {
		return "middle"
	}
	return "bottom"
}

func borderRadius(st *State) int {
	n := st.Int(AttrBorderRadius, 4)
	if n < 0 {
		return 4
	}
	return n
}

func dashPattern(series SeriesSet) ([]any, bool) {
	dashed := false
	out := make([]any, series.Len())
	for i, se := range series.Series {
		if se.Dashed {
			out[i] = dashLength
			dashed = true
			continue
		}
		out[i] = 0
	}
	return out, dashed
}

// dimension keeps relative sizes ("100%") as strings; "640" and "640px" become ints.
func dimension(v string) any {
	v = strings.TrimSpace(v)
	n, ok := parseIntPrefix(v)
	if !ok {
		return v
	}
	if rest := strings.TrimLeft(v, "+-0123456789"); rest == "" || rest == "px" {
		return n
	}
	return v
}

func payloadKeys(p Payload) []string {
	switch p.Shape {
	case ShapeCategoryMap:
		return p.Categories.Keys()
	case ShapeNamedSeries:
		if len(p.Series) > 0 {
			if obj, ok := p.Series[0].Body.(Object); ok {
				return obj.Keys()
			}
		}
	}
	return nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// String implements fmt.Stringer for log fields.
func (r Result) String() string {
	return fmt.Sprintf("%s chart, %d series", r.Kind, r.Series.Len())
}
