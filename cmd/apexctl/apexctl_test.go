package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/scheduler"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

const barFile = `
type: bar
attributes:
  title: Sales
  categories: [Q1, Q2]
  show-legend: false
data:
  - name: revenue
    data: [10, 12.5]
options:
  chart: {stacked: true, toolbar: {show: false}}
`

func TestParseChartFile(t *testing.T) {
	attrs, err := parseChartFile([]byte(barFile))
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"type":        "bar",
		"title":       "Sales",
		"categories":  `["Q1","Q2"]`,
		"show-legend": "false",
		"data":        `[{"name":"revenue","data":[10,12.5]}]`,
		"options":     `{"chart":{"stacked":true,"toolbar":{"show":false}}}`,
	}, attrs)
}

func TestParseChartFileKeepsKeyOrder(t *testing.T) {
	attrs, err := parseChartFile([]byte("type: pie\ndata: {zeta: 1, alpha: 2, mid: ~}\n"))
	require.NoError(t, err)
	require.Equal(t, `{"zeta":1,"alpha":2,"mid":null}`, attrs["data"])
}

func TestParseChartFileRejects(t *testing.T) {
	_, err := parseChartFile([]byte("- a\n- b\n"))
	require.ErrorContains(t, err, "must be a mapping")

	_, err = parseChartFile([]byte("type: bar\nseries: []\n"))
	require.ErrorContains(t, err, `unknown key "series"`)

	_, err = parseChartFile([]byte("attributes:\n  colour: red\n"))
	require.Error(t, err)
}

func writeChart(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	p := writeChart(t, "type: donut\ndata: [[Desktop, 44], [Mobile, 23]]\n")
	out, err := execute(t, "build", "-f", p)
	require.NoError(t, err)

	var got buildOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "donut", got.Type)
	require.Equal(t, []any{44.0, 23.0}, got.Series)
	require.Equal(t, []string{"Desktop", "Mobile"}, got.Labels)
}

func TestBuildCommandEmptyData(t *testing.T) {
	p := writeChart(t, "type: line\n")
	_, err := execute(t, "build", "-f", p)
	require.ErrorContains(t, err, chart.EmptyDataMessage)
}

func TestExportCommandCSV(t *testing.T) {
	p := writeChart(t, barFile)
	out, err := execute(t, "export", "-f", p, "--format", "csv")
	require.NoError(t, err)
	require.Equal(t, "x,revenue\nQ1,10\nQ2,12.5\n", out)

	_, err = execute(t, "export", "-f", p, "--format", "pdf")
	require.Error(t, err)
}

func TestRenderCommandWritesFile(t *testing.T) {
	p := writeChart(t, barFile)
	dst := filepath.Join(t.TempDir(), "out.svg")
	_, err := execute(t, "render", "-f", p, "--svg", "-o", dst)
	require.NoError(t, err)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Contains(t, string(b), "<svg")
}

func TestCodesCommand(t *testing.T) {
	out, err := execute(t, "codes")
	require.NoError(t, err)
	require.Contains(t, out, `"data.empty"`)
}

func TestDiffAttributes(t *testing.T) {
	muts := diffAttributes(
		map[string]string{"type": "bar", "title": "A", "height": "300"},
		map[string]string{"type": "bar", "title": "B", "width": "500"},
	)
	require.Equal(t, map[string]chart.Mutation{
		"title":  chart.SetTo("B"),
		"width":  chart.SetTo("500"),
		"height": chart.Removed(),
	}, muts)
}

func TestWatcherDebouncesFileChanges(t *testing.T) {
	p := writeChart(t, barFile)
	clock := scheduler.NewManualClock(time.Unix(0, 0))
	var out bytes.Buffer
	w := &watcher{path: p, out: &out, log: telemetry.Nop(), delay: 100 * time.Millisecond, clock: clock}
	ctx := context.Background()

	require.NoError(t, w.start(ctx))
	defer w.comp.Close(ctx)
	w.comp.ForceUpdate(ctx)
	require.True(t, w.comp.Mounted())
	out.Reset()

	require.NoError(t, os.WriteFile(p, []byte(strings.Replace(barFile, "title: Sales", "title: Revenue", 1)), 0o644))
	w.reload(ctx)
	require.Equal(t, "pending", w.comp.SchedulerState().String())
	require.Zero(t, out.Len())

	clock.Advance(100 * time.Millisecond)
	require.Contains(t, out.String(), `"op":"updateOptions"`)
	require.Contains(t, out.String(), "Revenue")
	require.Equal(t, "Revenue", w.attrs["title"])

	w.reload(ctx)
	require.Equal(t, "idle", w.comp.SchedulerState().String())
}
