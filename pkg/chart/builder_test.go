package chart

import (
	"testing"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/stretchr/testify/require"
)

func stateOf(t *testing.T, attrs map[string]string) *State {
	t.Helper()
	st, err := StateFrom(attrs)
	require.NoError(t, err)
	return st
}

func lookup(t *testing.T, cfg map[string]any, path string) any {
	t.Helper()
	v, ok := config.Lookup(cfg, path)
	require.True(t, ok, "missing %s", path)
	return v
}

func TestBuild_PieScenario(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type": "pie",
		"data": `[["Desktop",44],["Mobile",23]]`,
	}))
	require.NoError(t, err)
	require.Equal(t, []any{44.0, 23.0}, res.Series.Render())
	require.Equal(t, []string{"Desktop", "Mobile"}, res.Labels)
	require.Equal(t, []any{"Desktop", "Mobile"}, res.Config["labels"])
	require.Equal(t, "pie", lookup(t, res.Config, "chart.type"))
	require.Equal(t, true, lookup(t, res.Config, "legend.show"))
}

func TestBuild_LineSingleSeriesHidesLegend(t *testing.T) {
	st := stateOf(t, map[string]string{"type": "line", "data": `{"Jan":100,"Feb":120}`})
	res, err := Build(st)
	require.NoError(t, err)
	require.Equal(t, false, lookup(t, res.Config, "legend.show"))
	require.Equal(t, "smooth", lookup(t, res.Config, "stroke.curve"))
	require.Equal(t, 3, lookup(t, res.Config, "stroke.width"))
	require.Equal(t, 6, lookup(t, res.Config, "markers.size"))

	st.Set(AttrShowLegend, "true")
	res, err = Build(st)
	require.NoError(t, err)
	require.Equal(t, true, lookup(t, res.Config, "legend.show"))
}

func TestBuild_UserOptionsWinButTypeIsForced(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":    "column",
		"data":    `[1,2,3]`,
		"options": `{"chart":{"type":"pie","height":500},"legend":{"position":"top"}}`,
	}))
	require.NoError(t, err)
	require.Equal(t, "bar", lookup(t, res.Config, "chart.type"))
	require.Equal(t, 500.0, lookup(t, res.Config, "chart.height"))
	require.Equal(t, "top", lookup(t, res.Config, "legend.position"))
	require.Equal(t, false, lookup(t, res.Config, "plotOptions.bar.horizontal"))
}

func TestBuild_EmptyAndUnsupported(t *testing.T) {
	_, err := Build(stateOf(t, map[string]string{"type": "line"}))
	require.True(t, cerr.HasCode(err, cerr.DataEmpty))
	require.Equal(t, EmptyDataMessage, cerr.MessageOf(err))

	_, err = Build(stateOf(t, map[string]string{"type": "heatmap", "data": `[1]`}))
	require.True(t, cerr.HasCode(err, cerr.ChartUnsupportedType))
	require.Equal(t, `Chart type "heatmap" is not supported yet`, cerr.MessageOf(err))
}

func TestBuild_MalformedInputsWarn(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{"type": "line", "data": `[1,2`}))
	require.True(t, cerr.HasCode(err, cerr.DataEmpty))
	require.Len(t, res.Warnings, 1)
	require.True(t, cerr.HasCode(res.Warnings[0], cerr.DataMalformed))

	res, err = Build(stateOf(t, map[string]string{"type": "line", "data": `[1]`, "options": `{oops`}))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	require.True(t, cerr.HasCode(res.Warnings[0], cerr.OptionsMalformed))
}

func TestBuild_UnknownTypeFallsBackToLine(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{"type": "sparkles", "data": `[1]`}))
	require.NoError(t, err)
	require.Equal(t, KindLine, res.Kind)
	require.Equal(t, "line", lookup(t, res.Config, "chart.type"))
}

func TestBuild_AxisFormatters(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":                 "line",
		"data":                 `[1,2]`,
		"x-axis-output-format": "money",
		"y-axis-output-format": "thousand",
	}))
	require.NoError(t, err)
	require.Equal(t, LabelFormatter{Format: FormatMoney}, lookup(t, res.Config, "xaxis.labels.formatter"))
	require.Equal(t, LabelFormatter{Format: FormatThousand}, lookup(t, res.Config, "yaxis.labels.formatter"))

	res, err = Build(stateOf(t, map[string]string{
		"type":                 "line",
		"data":                 `[1,2]`,
		"y-axis-output-format": "money",
		"options":              `{"yaxis":{"labels":{"formatter":"custom"}}}`,
	}))
	require.NoError(t, err)
	require.Equal(t, "custom", lookup(t, res.Config, "yaxis.labels.formatter"))

	res, err = Build(stateOf(t, map[string]string{
		"type":                 "line",
		"data":                 `[1,2]`,
		"y-axis-output-format": "money",
		"options":              `{"yaxis":[{"seriesName":"a"},{"labels":{"formatter":"mine"}}]}`,
	}))
	require.NoError(t, err)
	axes := res.Config["yaxis"].([]any)
	require.Equal(t, LabelFormatter{Format: FormatMoney}, lookup(t, axes[0].(map[string]any), "labels.formatter"))
	require.Equal(t, "mine", lookup(t, axes[1].(map[string]any), "labels.formatter"))

	res, err = Build(stateOf(t, map[string]string{
		"type":                 "line",
		"data":                 `[1,2]`,
		"x-axis-output-format": "bogus",
	}))
	require.NoError(t, err)
	_, ok := config.Lookup(res.Config, "xaxis.labels.formatter")
	require.False(t, ok)
	require.Len(t, res.Warnings, 1)
	require.True(t, cerr.HasCode(res.Warnings[0], cerr.AttributeInvalid))
}

func TestBuild_RealtimeAndStacked(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":     "column",
		"data":     `[{"name":"a","data":[1,2]},{"name":"b","data":[3,4]}]`,
		"realtime": "true",
		"stacked":  "true",
	}))
	require.NoError(t, err)
	require.Equal(t, false, lookup(t, res.Config, "dataLabels.enabled"))
	require.Equal(t, 0, lookup(t, res.Config, "markers.size"))
	require.Equal(t, "linear", lookup(t, res.Config, "chart.animations.easing"))
	require.Equal(t, true, lookup(t, res.Config, "chart.stacked"))
	require.Equal(t, "all", lookup(t, res.Config, "plotOptions.bar.borderRadiusWhenStacked"))
	require.Equal(t, 4, lookup(t, res.Config, "plotOptions.bar.borderRadius"))
}

func TestBuild_SeriesColorsAndDash(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type": "line",
		"data": `[{"name":"a","data":[1],"color":"#f00","dashed":true},{"name":"b","data":[2],"color":"#0f0"}]`,
	}))
	require.NoError(t, err)
	require.Equal(t, []any{"#f00", "#0f0"}, res.Config["colors"])
	require.Equal(t, []any{5, 0}, lookup(t, res.Config, "stroke.dashArray"))

	res, err = Build(stateOf(t, map[string]string{
		"type":    "line",
		"data":    `[{"name":"a","data":[1],"color":"#f00"}]`,
		"options": `{"colors":["#123"]}`,
	}))
	require.NoError(t, err)
	require.Equal(t, []any{"#123"}, res.Config["colors"])
}

func TestBuild_HorizontalCategories(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":            "column",
		"data":            `[1,2]`,
		"categories":      `["a","b"]`,
		"bar-orientation": "horizontal",
	}))
	require.NoError(t, err)
	require.Equal(t, true, lookup(t, res.Config, "plotOptions.bar.horizontal"))
	require.Equal(t, []any{"a", "b"}, lookup(t, res.Config, "yaxis.categories"))
}

func TestBuild_RadarTitleNamesSeries(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":  "radar",
		"title": "Skills",
		"data":  `{"speed":3,"power":5}`,
	}))
	require.NoError(t, err)
	require.Equal(t, "Skills", res.Series.Series[0].Name)
	require.Equal(t, []string{"speed", "power"}, res.Categories)
	require.Equal(t, []any{"speed", "power"}, lookup(t, res.Config, "xaxis.categories"))
}

func TestBuild_LabelsMatchSeriesLength(t *testing.T) {
	categoryLists := []string{``, `["a"]`, `["a","b","c"]`, `["a","b","c","d","e"]`}
	for _, kind := range []string{"pie", "donut", "radialBar", "polarArea"} {
		for _, cats := range categoryLists {
			attrs := map[string]string{"type": kind, "data": `[10,20,30]`}
			if cats != "" {
				attrs["categories"] = cats
			}
			res, err := Build(stateOf(t, attrs))
			require.NoError(t, err)
			require.Len(t, res.Labels, res.Series.Len(), "%s %s", kind, cats)
			require.Len(t, res.Config["labels"], res.Series.Len(), "%s %s", kind, cats)
		}
	}
}

func TestBuild_PolarSortsDescending(t *testing.T) {
	st := stateOf(t, map[string]string{
		"type":   "polarArea",
		"data":   `[["a",1],["b",3],["c",2]]`,
		"colors": `["#1","#2","#3"]`,
	})
	res, err := Build(st)
	require.NoError(t, err)
	require.Equal(t, []any{3.0, 2.0, 1.0}, res.Series.Render())
	require.Equal(t, []string{"b", "c", "a"}, res.Labels)
	require.Equal(t, []any{"#2", "#3", "#1"}, res.Config["colors"])

	raw, _ := st.Get(AttrData)
	require.Equal(t, `[["a",1],["b",3],["c",2]]`, raw)
}

func TestBuild_RadialDefaults(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{"type": "radial-bar", "data": `[70]`}))
	require.NoError(t, err)
	require.Equal(t, "radialBar", lookup(t, res.Config, "chart.type"))
	require.Equal(t, "50%", lookup(t, res.Config, "plotOptions.radialBar.hollow.size"))
	require.Equal(t, 0, lookup(t, res.Config, "plotOptions.radialBar.startAngle"))
	require.Equal(t, 360, lookup(t, res.Config, "plotOptions.radialBar.endAngle"))
	require.Equal(t, false, lookup(t, res.Config, "legend.show"))
	require.Equal(t, []string{"Item 1"}, res.Labels)
}

func TestVisualFragment_OnlyChangedKeys(t *testing.T) {
	st := stateOf(t, map[string]string{"type": "line", "data": `[1,2,3]`, "title": "Sales"})
	res, err := Build(st)
	require.NoError(t, err)

	only := func(as ...Attr) func(Attr) bool {
		return func(a Attr) bool {
			for _, x := range as {
				if a == x {
					return true
				}
			}
			return false
		}
	}
	require.Equal(t, map[string]any{"title": map[string]any{"text": "Sales"}},
		VisualFragment(res.Config, only(AttrTitle)))

	frag := VisualFragment(res.Config, only(AttrShowLegend, AttrHeight))
	require.Equal(t, false, lookup(t, frag, "legend.show"))
	require.Equal(t, 350, lookup(t, frag, "chart.height"))
	_, ok := config.Lookup(frag, "legend.position")
	require.False(t, ok)
}

func TestVisualFragment_FollowsUserOptionsAndBars(t *testing.T) {
	res, err := Build(stateOf(t, map[string]string{
		"type":                "column",
		"data":                `{"a":1,"b":2}`,
		"data-label-position": "top",
		"options":             `{"title":{"text":"pinned"}}`,
		"title":               "ignored",
	}))
	require.NoError(t, err)

	frag := VisualFragment(res.Config, func(a Attr) bool {
		return a == AttrTitle || a == AttrDataLabelPosition || a == AttrDataLabelOrientation
	})
	require.Equal(t, "pinned", lookup(t, frag, "title.text"))
	require.Equal(t, "top", lookup(t, frag, "plotOptions.bar.dataLabels.position"))
	_, ok := config.Lookup(frag, "plotOptions.bar.dataLabels.orientation")
	require.False(t, ok)
}
