package chart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := ParsePayload(raw)
	require.NoError(t, err)
	return p
}

func TestClassify_Shapes(t *testing.T) {
	cases := []struct {
		raw  string
		want Shape
	}{
		{``, ShapeEmpty},
		{`[]`, ShapeEmpty},
		{`{}`, ShapeEmpty},
		{`[1,2,3]`, ShapeScalars},
		{`[["a",1],["b",2]]`, ShapePairs},
		{`[{"x":1,"y":2}]`, ShapePoints},
		{`[{"name":"A","data":[1,2]}]`, ShapeNamedSeries},
		{`{"Jan":100}`, ShapeCategoryMap},
		{`42`, ShapeEmpty},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, mustPayload(t, tc.raw).Shape, tc.raw)
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	p, err := ParsePayload(`[1,2`)
	require.Error(t, err)
	require.Equal(t, ShapeEmpty, p.Shape)
}

func TestNormalize_CategoryMapLine(t *testing.T) {
	set := Normalize(mustPayload(t, `{"Jan":100,"Feb":120}`), FamilyCartesian)
	require.Equal(t, 1, set.Len())
	require.Equal(t, "Series 1", set.Series[0].Name)
	require.Equal(t, []any{
		Point{X: "Jan", Y: 100.0},
		Point{X: "Feb", Y: 120.0},
	}, set.Series[0].Data)
}

func TestNormalize_PairsPie(t *testing.T) {
	set := Normalize(mustPayload(t, `[["Desktop",44],["Mobile",23]]`), FamilyCircular)
	require.Equal(t, []any{44.0, 23.0}, set.Values())
	require.Equal(t, []string{"Desktop", "Mobile"}, set.Names())
}

func TestNormalize_KeyOrderPreserved(t *testing.T) {
	set := Normalize(mustPayload(t, `{"z":1,"a":2,"m":3}`), FamilyCartesian)
	var xs []any
	for _, d := range set.Series[0].Data {
		xs = append(xs, d.(Point).X)
	}
	require.Equal(t, []any{"z", "a", "m"}, xs)
}

func TestNormalize_NamedSeriesKeepsColorAndDash(t *testing.T) {
	set := Normalize(mustPayload(t, `[{"name":"A","data":[[1,2],[3,4]],"color":"#f00","dashed":true},{"name":"B","data":[5]}]`), FamilyCartesian)
	require.Equal(t, 2, set.Len())
	require.Equal(t, "#f00", set.Series[0].Color)
	require.True(t, set.Series[0].Dashed)
	require.Equal(t, []any{Point{X: 1.0, Y: 2.0}, Point{X: 3.0, Y: 4.0}}, set.Series[0].Data)
	require.Equal(t, []any{5.0}, set.Series[1].Data)
}

func TestNormalize_RadarObjectBody(t *testing.T) {
	set := Normalize(mustPayload(t, `[{"name":"Team","data":{"speed":3,"power":5}}]`), FamilyRadar)
	require.Equal(t, []any{3.0, 5.0}, set.Series[0].Data)
}

func TestNormalize_Idempotent(t *testing.T) {
	payloads := []string{
		`[1,2,3]`,
		`[["a",1],["b",2]]`,
		`[{"x":1,"y":2},{"x":2,"y":5}]`,
		`[{"name":"A","data":[1,2]},{"name":"B","data":[[1,2]],"color":"#0f0"}]`,
		`{"Jan":100,"Feb":120}`,
	}
	families := []Family{FamilyCartesian, FamilyCircular, FamilyRadial, FamilyPolar, FamilyRadar}

	for _, raw := range payloads {
		for _, f := range families {
			first := Normalize(mustPayload(t, raw), f)
			second := NormalizeValue(first.ToPayload(), f)
			require.Equal(t, first.Len(), second.Len(), "%s/%s", raw, f)
			for i := range first.Series {
				require.Equal(t, first.Series[i].Data, second.Series[i].Data, "%s/%s", raw, f)
				require.Equal(t, first.Series[i].Value, second.Series[i].Value, "%s/%s", raw, f)
			}
		}
	}
}

func TestSeriesSet_RenderShapes(t *testing.T) {
	pie := Normalize(mustPayload(t, `[["a",1],["b",2]]`), FamilyCircular)
	b, err := pie.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[1,2]`, string(b))

	line := Normalize(mustPayload(t, `{"a":1}`), FamilyCartesian)
	b, err = line.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"Series 1","data":[{"x":"a","y":1}]}]`, string(b))
}

func TestDecodeJSON_DuplicateKeys(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)
	obj := v.(Object)
	require.Equal(t, []string{"a", "b"}, obj.Keys())
	require.Equal(t, []any{3.0, 2.0}, obj.Values())
}

func TestParseJSONObject(t *testing.T) {
	m, err := ParseJSONObject(`{"legend":{"show":false}}`)
	require.NoError(t, err)
	require.Equal(t, false, m["legend"].(map[string]any)["show"])

	m, err = ParseJSONObject(`[1]`)
	require.Error(t, err)
	require.Empty(t, m)
}
