package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/export"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/idempotency"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/seriesstore"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	cerr.WriteError(w, telemetry.RequestID(r.Context()), err)
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return cerr.Wrap(cerr.RequestInvalid, err, "invalid request body: "+err.Error())
	}
	return nil
}

// attributeValue turns a JSON value into an attribute string: strings are
// taken as-is, anything else keeps its JSON text.
func attributeValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", cerr.Wrap(cerr.RequestInvalid, err, "invalid attribute value")
		}
		return s, nil
	}
	return string(raw), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) (*component.Component, bool) {
	c, err := s.Registry.Get(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return c, true
}

// ---- service ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := append([]telemetry.HealthCheck{{
		Name: "charts",
		Check: func(context.Context) (map[string]string, error) {
			return map[string]string{"count": strconv.Itoa(s.Registry.Len())}, nil
		},
	}}, s.Checks...)
	var now time.Time
	if s.Now != nil {
		now = s.Now()
	}
	snap := telemetry.CheckHealth(r.Context(), "chartd", now, checks)
	writeJSON(w, snap.HTTPStatus(), snap)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	out := map[string]int64{}
	if s.Counters != nil {
		out = s.Counters.Snapshot()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, s.Styles.CSS())
}

type formatRequest struct {
	Format string `json:"format"`
	Values []any  `json:"values"`
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	code, ok := chart.ParseOutputFormat(req.Format)
	if !ok {
		s.fail(w, r, cerr.Newf(cerr.RequestInvalid, "unknown output format %q", req.Format))
		return
	}
	labels := make([]string, len(req.Values))
	for i, v := range req.Values {
		labels[i] = s.Formatter.Label(v, code)
	}
	writeJSON(w, http.StatusOK, map[string]any{"format": string(code), "labels": labels})
}

// ---- charts ----

type chartView struct {
	ID          string               `json:"id"`
	Attributes  map[string]string    `json:"attributes"`
	Mounted     bool                 `json:"mounted"`
	Scheduler   string               `json:"scheduler"`
	DelayMillis int64                `json:"delay_ms"`
	Error       *cerr.ErrorBody      `json:"error,omitempty"`
	Store       seriesstore.Snapshot `json:"store"`
}

func viewOf(c *component.Component) chartView {
	snap := c.Snapshot()
	v := chartView{
		ID:          c.ID(),
		Attributes:  snap.Attributes,
		Mounted:     c.Mounted(),
		Scheduler:   c.SchedulerState().String(),
		DelayMillis: c.UpdateDelay().Milliseconds(),
		Store:       snap.Store,
	}
	if err := c.LastError(); err != nil {
		env := cerr.FromError(err, cerr.Internal, "")
		v.Error = &env.Error
	}
	return v
}

type createRequest struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	attrs := make(map[string]string, len(req.Attributes))
	for name, raw := range req.Attributes {
		if isNull(raw) {
			continue
		}
		v, err := attributeValue(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		attrs[name] = v
	}
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" || s.Replays == nil {
		c, err := s.Registry.Create(r.Context(), attrs)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOf(c))
		return
	}

	rk, err := idempotency.BuildKey("create-chart", key, attrs)
	if err != nil {
		s.fail(w, r, cerr.Wrap(cerr.RequestInvalid, err, "invalid "+IdempotencyKeyHeader))
		return
	}
	live := func(id string) bool {
		_, err := s.Registry.Get(id)
		return err == nil
	}
	id, replayed, err := s.Replays.Resolve(rk, live, func() (string, error) {
		c, err := s.Registry.Create(r.Context(), attrs)
		if err != nil {
			return "", err
		}
		return c.ID(), nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.Registry.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, viewOf(c))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids := s.Registry.IDs()
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		c, err := s.Registry.Get(id)
		if err != nil {
			continue
		}
		attrs := c.Attributes()
		out = append(out, map[string]any{"id": id, "type": attrs["type"], "mounted": c.Mounted()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"charts": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Registry.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.Hub != nil {
		s.Hub.Drop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type configView struct {
	Type       string         `json:"type"`
	Config     map[string]any `json:"config"`
	Series     any            `json:"series"`
	Labels     []string       `json:"labels,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	res, err := c.Build()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := configView{
		Type:       res.Descriptor.EngineType,
		Config:     res.Config,
		Series:     res.Series.Render(),
		Labels:     res.Labels,
		Categories: res.Categories,
	}
	for _, warn := range res.Warnings {
		out.Warnings = append(out.Warnings, warn.Error())
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- attributes ----

type valueRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handlePutAttribute(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req valueRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := mux.Vars(r)["name"]
	var err error
	if isNull(req.Value) {
		err = c.RemoveAttribute(r.Context(), name)
	} else {
		var v string
		if v, err = attributeValue(req.Value); err == nil {
			err = c.SetAttribute(r.Context(), name, v)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(c))
}

func (s *Server) handleDeleteAttribute(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	if err := c.RemoveAttribute(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(c))
}

func (s *Server) handlePatchAttributes(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req map[string]json.RawMessage
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	muts := make(map[string]chart.Mutation, len(req))
	for name, raw := range req {
		if isNull(raw) {
			muts[name] = chart.Removed()
			continue
		}
		v, err := attributeValue(raw)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		muts[name] = chart.SetTo(v)
	}
	if err := c.MutateMany(r.Context(), muts); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(c))
}

// ---- scheduling ----

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	c.ForceUpdate(r.Context())
	writeJSON(w, http.StatusOK, viewOf(c))
}

type delayRequest struct {
	Delay string `json:"delay"`
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req delayRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := time.ParseDuration(req.Delay)
	if err != nil {
		s.fail(w, r, cerr.Wrap(cerr.RequestInvalid, err, "invalid delay: "+err.Error()))
		return
	}
	if err := c.SetUpdateDelay(d); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

// ---- programmatic api ----

func (s *Server) handleUpdateData(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var data any
	if err := decodeBody(r, &data); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.UpdateData(r.Context(), data); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	if err := c.ClearData(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (s *Server) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var opts map[string]any
	if err := decodeBody(r, &opts); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.SetOptions(r.Context(), opts); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": c.ID(), "options": c.Options()})
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var opts map[string]any
	if err := decodeBody(r, &opts); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.UpdateOptions(r.Context(), opts); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(c))
}

type loadingRequest struct {
	Loading bool `json:"loading"`
}

func (s *Server) handleLoading(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req loadingRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := c.SetLoading(r.Context(), req.Loading); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

// ---- series store ----

type seriesRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Data  []any  `json:"data"`
}

func (s *Server) handleAddSeries(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req seriesRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == "" {
		s.fail(w, r, cerr.New(cerr.RequestInvalid, "series name is required"))
		return
	}
	c.AddSeries(req.Name, req.Color, req.Data)
	writeJSON(w, http.StatusOK, c.StoreSnapshot())
}

type anyValueRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleSeriesValue(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req anyValueRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c.AddSeriesValue(mux.Vars(r)["name"], req.Value)
	writeJSON(w, http.StatusOK, c.StoreSnapshot())
}

func (s *Server) handleSeriesCategoryValue(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req anyValueRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	written := c.AddSeriesCategoryValue(vars["name"], vars["category"], req.Value)
	writeJSON(w, http.StatusOK, map[string]any{"written": written, "store": c.StoreSnapshot()})
}

type colorRequest struct {
	Color string `json:"color"`
}

func (s *Server) handleSeriesColor(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req colorRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	name := mux.Vars(r)["name"]
	if !c.SetSeriesColor(name, req.Color) {
		s.fail(w, r, cerr.Newf(cerr.RequestInvalid, "series %q is not in the store", name))
		return
	}
	writeJSON(w, http.StatusOK, c.StoreSnapshot())
}

type listRequest struct {
	Categories []string `json:"categories"`
	Colors     []string `json:"colors"`
}

func (s *Server) handleAddCategories(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req listRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c.AddCategories(req.Categories)
	writeJSON(w, http.StatusOK, c.StoreSnapshot())
}

func (s *Server) handleAddColors(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var req listRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c.AddColors(req.Colors)
	writeJSON(w, http.StatusOK, c.StoreSnapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	if err := c.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

// ---- export / viewers ----

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in := export.Input{Series: c.ExportData()}
	if res, err := c.Build(); err == nil {
		in.Kind = res.Kind
		in.Categories = res.Categories
		in.Labels = res.Labels
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, f, in); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+c.ID()+f.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	if s.Hub == nil {
		s.fail(w, r, cerr.New(cerr.RenderMissing, component.MissingEngineMessage))
		return
	}
	if err := s.Hub.Serve(w, r, c.ID()); err != nil {
		s.Logger.Warn(r.Context(), "hub.serve_failed", map[string]any{"chart_id": c.ID(), "error": err.Error()})
	}
}
