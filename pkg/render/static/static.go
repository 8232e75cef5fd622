// Package static is a rendering engine that draws charts to PNG or SVG files
// with go-chart.
package static

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

const (
	defaultWidth  = 800
	defaultHeight = 350
)

var palette = []drawing.Color{
	drawing.ColorFromHex("008FFB"),
	drawing.ColorFromHex("00E396"),
	drawing.ColorFromHex("FEB019"),
	drawing.ColorFromHex("FF4560"),
	drawing.ColorFromHex("775DD0"),
}

// Engine writes one file per target under Dir, or to Open when set.
type Engine struct {
	Dir    string
	Format Format
	// Open overrides the output destination for a target.
	Open func(target string) (io.WriteCloser, error)
}

var _ component.Engine = (*Engine)(nil)

func (e *Engine) Construct(_ context.Context, target string, cfg map[string]any, series chart.SeriesSet) (component.Instance, error) {
	return &Instance{engine: e, target: target, cfg: config.Clone(cfg), series: series}, nil
}

func (e *Engine) format() Format {
	if e.Format == SVG {
		return SVG
	}
	return PNG
}

func (e *Engine) open(target string) (io.WriteCloser, error) {
	if e.Open != nil {
		return e.Open(target)
	}
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	return os.Create(filepath.Join(dir, target+"."+string(e.format())))
}

// Instance re-renders its output on every update.
type Instance struct {
	engine *Engine
	target string

	mu        sync.Mutex
	cfg       map[string]any
	series    chart.SeriesSet
	destroyed bool
}

func (i *Instance) Render(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.renderLocked(ctx)
}

func (i *Instance) renderLocked(ctx context.Context) error {
	if i.destroyed {
		return cerr.New(cerr.RenderDetached, "chart instance was destroyed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Render(&buf, i.engine.format(), i.cfg, i.series); err != nil {
		return err
	}
	w, err := i.engine.open(i.target)
	if err != nil {
		return fmt.Errorf("static: open %s: %w", i.target, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("static: write %s: %w", i.target, err)
	}
	return w.Close()
}

func (i *Instance) UpdateSeries(ctx context.Context, series chart.SeriesSet) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.series = series
	return i.renderLocked(ctx)
}

func (i *Instance) UpdateOptions(ctx context.Context, partial map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	merged, _ := config.Merge(i.cfg, partial, config.MergeOptions{})
	i.cfg = merged
	return i.renderLocked(ctx)
}

func (i *Instance) Destroy(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.destroyed = true
	return nil
}

func (i *Instance) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.destroyed
}

func (i *Instance) Data() chart.SeriesSet {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.series
}

// Render draws cfg and series in format f.
func Render(w io.Writer, f Format, cfg map[string]any, series chart.SeriesSet) error {
	rp := gochart.PNG
	if f == SVG {
		rp = gochart.SVG
	}
	opt := readOptions(cfg)

	switch opt.engineType {
	case "pie", "polarArea":
		return pieChart(opt, series).Render(rp, w)
	case "donut", "radialBar":
		pie := pieChart(opt, series)
		donut := gochart.DonutChart{Title: pie.Title, Width: pie.Width, Height: pie.Height, Values: pie.Values}
		return donut.Render(rp, w)
	case "bar":
		if series.Len() == 1 && !opt.stacked {
			return barChart(opt, series).Render(rp, w)
		}
		return stackedBarChart(opt, series).Render(rp, w)
	case "radar":
		return cerr.New(cerr.RenderFailed, "radar charts are not supported by the static renderer")
	default:
		graph := xyChart(opt, series)
		return graph.Render(rp, w)
	}
}

type options struct {
	engineType string
	title      string
	width      int
	height     int
	categories []string
	labels     []string
	colors     []drawing.Color
	stacked    bool
}

func readOptions(cfg map[string]any) options {
	opt := options{width: defaultWidth, height: defaultHeight}
	if v, ok := config.Lookup(cfg, "chart.type"); ok {
		opt.engineType, _ = v.(string)
	}
	if v, ok := config.Lookup(cfg, "title.text"); ok {
		opt.title, _ = v.(string)
	}
	if v, ok := config.Lookup(cfg, "chart.width"); ok {
		if n, ok := toFloat(v); ok && n > 0 {
			opt.width = int(n)
		}
	}
	if v, ok := config.Lookup(cfg, "chart.height"); ok {
		if n, ok := toFloat(v); ok && n > 0 {
			opt.height = int(n)
		}
	}
	if v, ok := config.Lookup(cfg, "xaxis.categories"); ok {
		opt.categories = toStrings(v)
	}
	if v, ok := cfg["labels"]; ok {
		opt.labels = toStrings(v)
	}
	if v, ok := cfg["colors"]; ok {
		for _, c := range toStrings(v) {
			opt.colors = append(opt.colors, drawing.ColorFromHex(strings.TrimPrefix(c, "#")))
		}
	}
	if v, ok := config.Lookup(cfg, "chart.stacked"); ok {
		opt.stacked = v == true
	}
	return opt
}

func (o options) color(i int) drawing.Color {
	if len(o.colors) > 0 {
		return o.colors[i%len(o.colors)]
	}
	return palette[i%len(palette)]
}

func (o options) label(i int, fallback string) string {
	if i < len(o.labels) && o.labels[i] != "" {
		return o.labels[i]
	}
	if fallback != "" {
		return fallback
	}
	return "Item " + strconv.Itoa(i+1)
}

func pieChart(o options, series chart.SeriesSet) gochart.PieChart {
	pie := gochart.PieChart{Title: o.title, Width: o.width, Height: o.height}
	for i, se := range series.Series {
		v, ok := toFloat(se.Value)
		if !ok {
			continue
		}
		pie.Values = append(pie.Values, gochart.Value{
			Value: v,
			Label: o.label(i, se.Name),
			Style: gochart.Style{FillColor: o.color(i)},
		})
	}
	return pie
}

func barChart(o options, series chart.SeriesSet) gochart.BarChart {
	bc := gochart.BarChart{Title: o.title, Width: o.width, Height: o.height, BarWidth: 40}
	se := series.Series[0]
	for i, d := range se.Data {
		x, y := xy(d, i)
		v, ok := toFloat(y)
		if !ok {
			continue
		}
		bc.Bars = append(bc.Bars, gochart.Value{
			Value: v,
			Label: categoryLabel(o, x, i),
			Style: gochart.Style{FillColor: o.color(0), StrokeColor: o.color(0)},
		})
	}
	return bc
}

func stackedBarChart(o options, series chart.SeriesSet) gochart.StackedBarChart {
	sbc := gochart.StackedBarChart{Title: o.title, Width: o.width, Height: o.height}
	rows := 0
	for _, se := range series.Series {
		if len(se.Data) > rows {
			rows = len(se.Data)
		}
	}
	for i := 0; i < rows; i++ {
		bar := gochart.StackedBar{}
		for si, se := range series.Series {
			if i >= len(se.Data) {
				continue
			}
			x, y := xy(se.Data[i], i)
			if bar.Name == "" {
				bar.Name = categoryLabel(o, x, i)
			}
			v, ok := toFloat(y)
			if !ok {
				continue
			}
			bar.Values = append(bar.Values, gochart.Value{
				Value: v,
				Label: se.Name,
				Style: gochart.Style{FillColor: o.color(si), StrokeColor: o.color(si)},
			})
		}
		sbc.Bars = append(sbc.Bars, bar)
	}
	return sbc
}

func xyChart(o options, series chart.SeriesSet) *gochart.Chart {
	graph := &gochart.Chart{Title: o.title, Width: o.width, Height: o.height}
	var ticks []gochart.Tick
	for si, se := range series.Series {
		cs := gochart.ContinuousSeries{Name: se.Name}
		for i, d := range se.Data {
			x, y := xy(d, i)
			yv, ok := toFloat(y)
			if !ok {
				continue
			}
			xv, numeric := toFloat(x)
			if !numeric {
				xv = float64(i)
				if si == 0 {
					ticks = append(ticks, gochart.Tick{Value: xv, Label: categoryLabel(o, x, i)})
				}
			}
			cs.XValues = append(cs.XValues, xv)
			cs.YValues = append(cs.YValues, yv)
		}
		c := o.color(si)
		cs.Style = gochart.Style{StrokeColor: c, StrokeWidth: 2, DotColor: c}
		switch o.engineType {
		case "scatter":
			cs.Style.StrokeColor = drawing.ColorTransparent
			cs.Style.DotWidth = 4
		case "area":
			cs.Style.FillColor = c.WithAlpha(64)
		}
		graph.Series = append(graph.Series, cs)
	}
	if len(ticks) > 1 {
		graph.XAxis = gochart.XAxis{Ticks: ticks}
	}
	if series.Len() > 1 {
		graph.Elements = []gochart.Renderable{gochart.Legend(graph)}
	}
	return graph
}

// xy splits a datum into x and y; scalars use their index as x.
func xy(d any, i int) (any, any) {
	if p, ok := d.(chart.Point); ok {
		return p.X, p.Y
	}
	return nil, d
}

func categoryLabel(o options, x any, i int) string {
	if s, ok := x.(string); ok && s != "" {
		return s
	}
	if i < len(o.categories) {
		return o.categories[i]
	}
	if x != nil {
		return fmt.Sprint(x)
	}
	return strconv.Itoa(i + 1)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, it := range x {
			out = append(out, fmt.Sprint(it))
		}
		return out
	}
	return nil
}
