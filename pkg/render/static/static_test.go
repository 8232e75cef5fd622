package static

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type sink struct {
	renders int
	last    bytes.Buffer
}

func (s *sink) engine(f Format) *Engine {
	return &Engine{Format: f, Open: func(string) (io.WriteCloser, error) {
		s.renders++
		s.last.Reset()
		return nopCloser{&s.last}, nil
	}}
}

func lineSet() chart.SeriesSet {
	return chart.SeriesSet{Family: chart.FamilyCartesian, Series: []chart.Series{
		{Name: "a", Data: []any{chart.Point{X: "Jan", Y: 1.0}, chart.Point{X: "Feb", Y: 3.0}, chart.Point{X: "Mar", Y: 2.0}}},
		{Name: "b", Data: []any{2.0, 2.5, 4.0}},
	}}
}

func TestEngine_LinePNG(t *testing.T) {
	var s sink
	cfg := map[string]any{"chart": map[string]any{"type": "line", "height": 300}, "title": map[string]any{"text": "Sales"}}

	inst, err := s.engine(PNG).Construct(context.Background(), "sales", cfg, lineSet())
	require.NoError(t, err)
	require.NoError(t, inst.Render(context.Background()))
	require.Equal(t, 1, s.renders)
	require.True(t, bytes.HasPrefix(s.last.Bytes(), []byte("\x89PNG")))
	require.True(t, inst.Attached())
}

func TestEngine_UpdatesRerender(t *testing.T) {
	var s sink
	cfg := map[string]any{"chart": map[string]any{"type": "area"}}
	inst, err := s.engine(SVG).Construct(context.Background(), "t", cfg, lineSet())
	require.NoError(t, err)
	require.NoError(t, inst.Render(context.Background()))

	require.NoError(t, inst.UpdateOptions(context.Background(), map[string]any{"title": map[string]any{"text": "Renamed"}}))
	require.Contains(t, s.last.String(), "Renamed")

	next := lineSet()
	next.Series = next.Series[:1]
	require.NoError(t, inst.UpdateSeries(context.Background(), next))
	require.Equal(t, 3, s.renders)
	require.Equal(t, 1, inst.Data().Len())
}

func TestEngine_DestroyDetaches(t *testing.T) {
	var s sink
	inst, err := s.engine(PNG).Construct(context.Background(), "t", map[string]any{}, lineSet())
	require.NoError(t, err)
	require.NoError(t, inst.Destroy(context.Background()))
	require.False(t, inst.Attached())

	err = inst.Render(context.Background())
	require.True(t, cerr.HasCode(err, cerr.RenderDetached))
	require.Zero(t, s.renders)
}

func TestRender_Pie(t *testing.T) {
	set := chart.SeriesSet{Family: chart.FamilyCircular, Series: []chart.Series{
		{Name: "Desktop", Value: 44.0},
		{Name: "Mobile", Value: 23.0},
	}}
	cfg := map[string]any{"chart": map[string]any{"type": "donut"}, "labels": []any{"Desktop", "Mobile"}, "colors": []any{"#FF0000", "#00FF00"}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, SVG, cfg, set))
	require.Contains(t, buf.String(), "<svg")
	require.Contains(t, buf.String(), "Mobile")
}

func TestRender_Bars(t *testing.T) {
	single := chart.SeriesSet{Family: chart.FamilyCartesian, Series: []chart.Series{{Name: "s", Data: []any{3.0, 4.0, 5.0}}}}
	cfg := map[string]any{"chart": map[string]any{"type": "bar"}, "xaxis": map[string]any{"categories": []any{"q1", "q2", "q3"}}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, SVG, cfg, single))
	require.Contains(t, buf.String(), "q2")

	buf.Reset()
	require.NoError(t, Render(&buf, SVG, cfg, lineSet()))
	require.True(t, strings.Contains(buf.String(), "<svg"))
}

func TestRender_RadarUnsupported(t *testing.T) {
	cfg := map[string]any{"chart": map[string]any{"type": "radar"}}
	err := Render(io.Discard, PNG, cfg, lineSet())
	require.True(t, cerr.HasCode(err, cerr.RenderFailed))
}

func TestReadOptions(t *testing.T) {
	o := readOptions(map[string]any{
		"chart":  map[string]any{"type": "bar", "width": "100%", "height": 420, "stacked": true},
		"labels": []any{"x"},
	})
	require.Equal(t, "bar", o.engineType)
	require.Equal(t, defaultWidth, o.width)
	require.Equal(t, 420, o.height)
	require.True(t, o.stacked)
	require.Equal(t, "x", o.label(0, "fallback"))
	require.Equal(t, "fallback", o.label(1, "fallback"))
	require.Equal(t, "Item 3", o.label(2, ""))
}
