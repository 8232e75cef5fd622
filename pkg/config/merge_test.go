package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestMergeUserLegendOverDefault(t *testing.T) {
	def := map[string]any{"legend": map[string]any{"position": "bottom", "show": true}}
	user := map[string]any{"legend": map[string]any{"position": "top"}}

	out, rep := Merge(def, user, MergeOptions{})
	require.False(t, rep.HasWarnings())
	require.Equal(t, `{"legend":{"position":"top","show":true}}`, mustJSON(t, out))
}

func TestMergeArraysReplaceWholesale(t *testing.T) {
	a := map[string]any{"colors": []any{"#111", "#222", "#333"}, "xaxis": map[string]any{"categories": []any{"a", "b"}}}
	b := map[string]any{"colors": []any{"#fff"}, "xaxis": map[string]any{"categories": []any{"z"}}}

	out, _ := Merge(a, b, MergeOptions{})
	require.Equal(t, []any{"#fff"}, out["colors"])
	require.Equal(t, []any{"z"}, out["xaxis"].(map[string]any)["categories"])
}

func TestMergeManyAssociative(t *testing.T) {
	a := map[string]any{"chart": map[string]any{"height": 350, "toolbar": map[string]any{"show": true}}}
	b := map[string]any{"chart": map[string]any{"height": 400}, "title": map[string]any{"text": "x"}}
	c := map[string]any{"chart": map[string]any{"toolbar": map[string]any{"show": false}}, "stroke": map[string]any{"width": 3}}

	ab, _ := MergeMany([]map[string]any{a, b}, MergeOptions{})
	stepwise, _ := MergeMany([]map[string]any{ab, c}, MergeOptions{})
	once, _ := MergeMany([]map[string]any{a, b, c}, MergeOptions{})

	require.Equal(t, mustJSON(t, once), mustJSON(t, stepwise))
	require.Equal(t, 400, once["chart"].(map[string]any)["height"])
	require.Equal(t, false, once["chart"].(map[string]any)["toolbar"].(map[string]any)["show"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := map[string]any{"chart": map[string]any{"height": 350}}
	b := map[string]any{"chart": map[string]any{"width": "100%"}}

	out, _ := Merge(a, b, MergeOptions{})
	out["chart"].(map[string]any)["height"] = 1

	require.Equal(t, `{"chart":{"height":350}}`, mustJSON(t, a))
	require.Equal(t, `{"chart":{"width":"100%"}}`, mustJSON(t, b))
}

func TestMergeTypeChangeWarns(t *testing.T) {
	a := map[string]any{"yaxis": map[string]any{"show": true}}
	b := map[string]any{"yaxis": []any{map[string]any{"show": false}}}

	out, rep := Merge(a, b, MergeOptions{})
	require.IsType(t, []any{}, out["yaxis"])
	require.Len(t, rep.Warnings, 1)
	require.Equal(t, "type.replace", rep.Warnings[0].Code)
	require.Equal(t, "$.yaxis", rep.Warnings[0].Path)
}

func TestMergeDepthGuard(t *testing.T) {
	deep := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	over := map[string]any{"a": map[string]any{"b": map[string]any{"d": 2}}}

	out, rep := Merge(deep, over, MergeOptions{MaxDepth: 1})
	require.Equal(t, 1, rep.DepthHit)
	require.Equal(t, map[string]any{"d": 2}, out["a"].(map[string]any)["b"])
}

func TestPathHelpers(t *testing.T) {
	m := Fragment("chart.type", "line", "chart.toolbar.show", false, "title.text", "Sales")
	v, ok := Lookup(m, "chart.toolbar.show")
	require.True(t, ok)
	require.Equal(t, false, v)

	_, ok = Lookup(m, "chart.zoom.enabled")
	require.False(t, ok)

	Set(m, "title", "flat")
	Set(m, "title.text", "nested")
	require.Equal(t, map[string]any{"text": "nested"}, m["title"])

	c := Clone(m)
	Set(c, "chart.type", "bar")
	v, _ = Lookup(m, "chart.type")
	require.Equal(t, "line", v)
}
