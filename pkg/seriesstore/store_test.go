package seriesstore

import (
	"encoding/json"
	"testing"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/stretchr/testify/require"
)

func TestAddSeriesCategoryValue_NewSeriesPrefilled(t *testing.T) {
	s := New()
	s.AddCategories([]string{"Jan", "Feb", "Mar"})

	require.True(t, s.AddSeriesCategoryValue("sales", "Feb", 10.0))
	r, ok := s.Series("sales")
	require.True(t, ok)
	require.Len(t, r.Data, 3)
	require.Equal(t, []any{nil, 10.0, nil}, r.Data)
}

func TestAddSeriesCategoryValue_UnknownCategoryIsNoop(t *testing.T) {
	s := New()
	s.AddCategory("Jan")
	s.AddSeries("a", "", []any{1.0})

	require.False(t, s.AddSeriesCategoryValue("a", "Dec", 5.0))
	r, _ := s.Series("a")
	require.Equal(t, []any{1.0}, r.Data)

	require.False(t, s.AddSeriesCategoryValue("b", "Dec", 5.0))
	r, ok := s.Series("b")
	require.True(t, ok)
	require.Equal(t, []any{nil}, r.Data)
}

func TestAddCategoryDoesNotResizeButMaterializePads(t *testing.T) {
	s := New()
	s.AddCategory("Jan")
	s.AddSeries("a", "#f00", []any{1.0})
	s.AddCategory("Feb")

	r, _ := s.Series("a")
	require.Len(t, r.Data, 1)

	set := s.Materialize(chart.FamilyCartesian)
	require.Equal(t, []any{1.0, nil}, set.Series[0].Data)
	require.Equal(t, "#f00", set.Series[0].Color)

	require.True(t, s.AddSeriesCategoryValue("a", "Feb", 2.0))
	r, _ = s.Series("a")
	require.Equal(t, []any{1.0, 2.0}, r.Data)
}

func TestAddSeriesCategoryValue_GapsAreNull(t *testing.T) {
	s := New()
	s.AddCategory("Jan")
	s.AddSeries("a", "", []any{1.0})
	s.AddCategories([]string{"Feb", "Mar"})

	require.True(t, s.AddSeriesCategoryValue("a", "Mar", 3.0))
	r, _ := s.Series("a")
	require.Equal(t, []any{1.0, nil, 3.0}, r.Data)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"a","data":[1,null,3]}`, string(b))
}

func TestAddSeriesValueKeepsColorAndOrder(t *testing.T) {
	s := New()
	s.AddSeries("b", "#0f0", []any{1.0, 2.0})
	s.AddSeries("a", "", nil)
	s.AddSeriesValue("b", 7.0)

	r, _ := s.Series("b")
	require.Equal(t, "#0f0", r.Color)
	require.Equal(t, []any{7.0}, r.Data)
	require.Equal(t, []string{"b", "a"}, s.Names())

	set := s.Materialize(chart.FamilyCircular)
	require.Equal(t, []any{7.0, nil}, set.Values())
}

func TestSetSeriesColor(t *testing.T) {
	s := New()
	require.False(t, s.SetSeriesColor("missing", "#fff"))
	require.Equal(t, 0, s.Len())

	s.AddSeries("a", "", []any{1.0})
	require.True(t, s.SetSeriesColor("a", "#fff"))
	r, _ := s.Series("a")
	require.Equal(t, "#fff", r.Color)
}

func TestClear(t *testing.T) {
	s := New()
	s.AddSeries("a", "", []any{1.0})
	s.AddCategory("x")
	s.AddColors([]string{"#000"})
	require.False(t, s.Empty())

	s.Clear()
	require.True(t, s.Empty())
	require.Empty(t, s.Materialize(chart.FamilyCartesian).Series)
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	s.AddCategories([]string{"q1", "q2"})
	s.AddSeriesCategoryValue("rev", "q2", 3.5)
	s.AddSeries("cost", "#123", []any{1.0, 2.0})
	s.AddColors([]string{"#abc"})

	b, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	require.JSONEq(t, `{"series":[{"name":"rev","data":[null,3.5]},{"name":"cost","data":[1,2],"color":"#123"}],"categories":["q1","q2"],"colors":["#abc"]}`, string(b))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(b, &snap))
	restored := New()
	restored.Restore(snap)
	require.Equal(t, s.Snapshot(), restored.Snapshot())
}
