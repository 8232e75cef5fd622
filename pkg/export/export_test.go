package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
)

func lineSet() chart.SeriesSet {
	return chart.SeriesSet{Family: chart.FamilyCartesian, Series: []chart.Series{
		{Name: "a", Data: []any{chart.Point{X: "Jan", Y: 1.0}, chart.Point{X: "Feb", Y: 2.0}}},
		{Name: "b", Data: []any{chart.Point{X: "Feb", Y: 5.0}, chart.Point{X: "Mar", Y: nil}}},
	}}
}

func TestTableOf_PointsAlignByX(t *testing.T) {
	tab := TableOf(lineSet(), nil, nil)
	require.Equal(t, []string{"x", "a", "b"}, tab.Header)
	require.Equal(t, [][]any{
		{"Jan", 1.0, nil},
		{"Feb", 2.0, 5.0},
		{"Mar", nil, nil},
	}, tab.Rows)
}

func TestTableOf_ScalarsUseCategories(t *testing.T) {
	set := chart.SeriesSet{Family: chart.FamilyCartesian, Series: []chart.Series{{Name: "s", Data: []any{3.0, 4.0, 5.0}}}}
	tab := TableOf(set, []string{"q1", "q2"}, nil)
	require.Equal(t, [][]any{{"q1", 3.0}, {"q2", 4.0}, {3.0, 5.0}}, tab.Rows)
}

func TestTableOf_Collapsing(t *testing.T) {
	set := chart.SeriesSet{Family: chart.FamilyCircular, Series: []chart.Series{
		{Name: "Desktop", Value: 44.0},
		{Value: 23.0},
	}}
	tab := TableOf(set, nil, nil)
	require.Equal(t, []string{"label", "value"}, tab.Header)
	require.Equal(t, [][]any{{"Desktop", 44.0}, {"Item 2", 23.0}}, tab.Rows)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, Input{Series: lineSet()}))
	require.Equal(t, "x,a,b\nJan,1,\nFeb,2,5\nMar,,\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	set := chart.SeriesSet{Family: chart.FamilyCircular, Series: []chart.Series{{Name: "x", Value: 1.0}}}
	require.NoError(t, Write(&buf, FormatJSON, Input{Kind: chart.KindPie, Series: set, Labels: []string{"x"}}))
	require.JSONEq(t, `{"type":"pie","series":[1],"labels":["x"]}`, buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, Input{Series: lineSet()}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "a", "b"}, rows[0])
	require.Equal(t, []string{"Feb", "2", "5"}, rows[2])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	require.Error(t, err)
}
