package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/idempotency"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/stream"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/scheduler"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/charts"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/hub"
)

type testAPI struct {
	handler http.Handler
	ops     *bytes.Buffer
	reg     *charts.Registry
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ops := &bytes.Buffer{}
	sink := stream.NewWriterSink(ops)
	reg := charts.New(charts.Options{
		Engine: &stream.Engine{Sink: sink},
		Sink:   sink,
		Clock:  scheduler.NewManualClock(time.Unix(0, 0)),
		Delay:  100 * time.Millisecond,
		NewID:  sequentialIDs(),
	})
	s := &Server{
		Registry: reg,
		Counters: telemetry.NewCounters(),
		Replays:  idempotency.NewCache(time.Hour, nil),
	}
	return &testAPI{handler: s.Handler(), ops: ops, reg: reg}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return a.doWith(t, method, path, body, nil)
}

func (a *testAPI) doWith(t *testing.T, method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		req.Header[k] = vs
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

const pieBody = `{"attributes":{"type":"pie","title":"Traffic","data":[["Desktop",44],["Mobile",23]]}}`

func TestCreateThenConfig(t *testing.T) {
	a := newTestAPI(t)

	rec, out := a.do(t, http.MethodPost, "/charts", pieBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "c1", out["id"])
	require.Equal(t, true, out["mounted"])
	require.Equal(t, `[["Desktop",44],["Mobile",23]]`, out["attributes"].(map[string]any)["data"])
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec, out = a.do(t, http.MethodGet, "/charts/c1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pie", out["type"])
	require.Equal(t, []any{44.0, 23.0}, out["series"])
	require.Equal(t, []any{"Desktop", "Mobile"}, out["labels"])

	_, out = a.do(t, http.MethodGet, "/charts", "")
	require.Len(t, out["charts"], 1)
}

func TestCreateHonorsIdempotencyKey(t *testing.T) {
	a := newTestAPI(t)
	h := http.Header{IdempotencyKeyHeader: {"order-7"}}

	rec, out := a.doWith(t, http.MethodPost, "/charts", pieBody, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "c1", out["id"])

	rec, out = a.doWith(t, http.MethodPost, "/charts", pieBody, h)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "c1", out["id"])
	require.Equal(t, 1, a.reg.Len())

	rec, out = a.doWith(t, http.MethodPost, "/charts", pieBody, http.Header{IdempotencyKeyHeader: {"order-8"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "c2", out["id"])

	a.do(t, http.MethodDelete, "/charts/c1", "")
	rec, out = a.doWith(t, http.MethodPost, "/charts", pieBody, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "c3", out["id"])
}

func TestCreateRejectsUnknownAttribute(t *testing.T) {
	a := newTestAPI(t)
	rec, out := a.do(t, http.MethodPost, "/charts", `{"attributes":{"colour":"red"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "attribute.unknown", out["error"].(map[string]any)["code"])
	require.Zero(t, a.reg.Len())
}

func TestMissingChart(t *testing.T) {
	a := newTestAPI(t)
	rec, out := a.do(t, http.MethodGet, "/charts/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "chart.not_found", out["error"].(map[string]any)["code"])
}

func TestAttributeMutationsAreDebouncedUntilFlush(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/charts", pieBody)
	a.ops.Reset()

	rec, out := a.do(t, http.MethodPut, "/charts/c1/attributes/title", `{"value":"Renamed"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "pending", out["scheduler"])
	require.Zero(t, a.ops.Len())

	_, out = a.do(t, http.MethodPost, "/charts/c1/flush", "")
	require.Equal(t, "idle", out["scheduler"])
	require.Contains(t, a.ops.String(), `"op":"updateOptions"`)
	require.Contains(t, a.ops.String(), "Renamed")

	_, out = a.do(t, http.MethodPatch, "/charts/c1/attributes", `{"title":null,"show-legend":"false"}`)
	attrs := out["attributes"].(map[string]any)
	require.NotContains(t, attrs, "title")
	require.Equal(t, "false", attrs["show-legend"])

	rec, _ = a.do(t, http.MethodDelete, "/charts/c1/attributes/show-legend", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestDelay(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/charts", pieBody)

	rec, out := a.do(t, http.MethodPut, "/charts/c1/delay", `{"delay":"250ms"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 250.0, out["delay_ms"])

	rec, out = a.do(t, http.MethodPut, "/charts/c1/delay", `{"delay":"-1s"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "request.invalid", out["error"].(map[string]any)["code"])
}

func TestSeriesStoreRoutes(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/charts", `{"attributes":{"type":"bar"}}`)

	a.do(t, http.MethodPost, "/charts/c1/categories", `{"categories":["Jan","Feb"]}`)
	a.do(t, http.MethodPost, "/charts/c1/series", `{"name":"sales","color":"#008FFB","data":[]}`)

	_, out := a.do(t, http.MethodPut, "/charts/c1/series/sales/categories/Feb", `{"value":7}`)
	require.Equal(t, true, out["written"])
	_, out = a.do(t, http.MethodPut, "/charts/c1/series/sales/categories/Mar", `{"value":9}`)
	require.Equal(t, false, out["written"])

	rec, _ := a.do(t, http.MethodPut, "/charts/c1/series/ghost/color", `{"color":"#000"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = a.do(t, http.MethodPost, "/charts/c1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["mounted"])
	attrs := out["attributes"].(map[string]any)
	require.Equal(t, `["Jan","Feb"]`, attrs["categories"])
	require.Contains(t, attrs["data"], `"sales"`)

	rec, _ = a.do(t, http.MethodGet, "/charts/c1/export?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "x,sales\nJan,\nFeb,7\n", rec.Body.String())

	rec, _ = a.do(t, http.MethodGet, "/charts/c1/export?format=pdf", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgrammaticRoutes(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/charts", pieBody)

	rec, out := a.do(t, http.MethodPut, "/charts/c1/data", `[["Tablet",10]]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "idle", out["scheduler"])

	_, out = a.do(t, http.MethodPut, "/charts/c1/options", `{"chart":{"animations":{"enabled":false}}}`)
	require.Contains(t, out["options"], "chart")

	a.ops.Reset()
	_, out = a.do(t, http.MethodPut, "/charts/c1/loading", `{"loading":true}`)
	require.Equal(t, "true", out["attributes"].(map[string]any)["loading"])
	require.Contains(t, a.ops.String(), `"op":"loading"`)

	rec, out = a.do(t, http.MethodDelete, "/charts/c1/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, out["attributes"], "data")
}

func TestEmptyDataIsReportedOnTheChart(t *testing.T) {
	a := newTestAPI(t)
	rec, out := a.do(t, http.MethodPost, "/charts", `{"attributes":{"type":"line"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, false, out["mounted"])
	require.Equal(t, chart.EmptyDataMessage, out["error"].(map[string]any)["message"])

	rec, out = a.do(t, http.MethodGet, "/charts/c1/config", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "data.empty", out["error"].(map[string]any)["code"])
}

func TestServiceRoutes(t *testing.T) {
	a := newTestAPI(t)

	rec, out := a.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", out["overall"])

	rec, _ = a.do(t, http.MethodGet, "/styles.css", "")
	require.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), ".apex-chart-container")

	_, out = a.do(t, http.MethodPost, "/format", `{"format":"money","values":[1234.5,"x"]}`)
	require.Equal(t, "1,234.50", out["labels"].([]any)[0])

	_, out = a.do(t, http.MethodGet, "/metrics", "")
	require.Contains(t, out, `http_requests{method="GET",status="2xx"}`)
}

func TestDeleteChart(t *testing.T) {
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/charts", pieBody)

	rec, _ := a.do(t, http.MethodDelete, "/charts/c1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, a.ops.String(), `"op":"destroy"`)

	rec, _ = a.do(t, http.MethodDelete, "/charts/c1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsocketViewerTriggersRebuild(t *testing.T) {
	var reg *charts.Registry
	h := hub.New(hub.Options{OnAttach: func(ctx context.Context, id string) { reg.Rebuild(ctx, id) }})
	reg = charts.New(charts.Options{
		Engine: &stream.Engine{Sink: h},
		Sink:   h,
		Clock:  scheduler.NewManualClock(time.Unix(0, 0)),
		NewID:  sequentialIDs(),
	})
	srv := httptest.NewServer((&Server{Registry: reg, Hub: h}).Handler())
	defer srv.Close()
	defer h.Close()

	_, err := reg.Create(context.Background(), map[string]string{"type": "donut", "data": "[1,2,3]"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/charts/c1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var ops []string
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for len(ops) < 3 {
		var m map[string]any
		require.NoError(t, ws.ReadJSON(&m))
		ops = append(ops, m["op"].(string))
	}
	require.Equal(t, []string{"destroy", "construct", "render"}, ops)
	require.Equal(t, 1, h.Viewers("c1"))
}
