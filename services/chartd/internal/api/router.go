// Package api is the chartd HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/idempotency"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/charts"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/hub"
)

const maxBodyBytes = 4 << 20

type Server struct {
	Registry  *charts.Registry
	Hub       *hub.Hub
	Styles    *component.StyleSheet
	Formatter *chart.Formatter
	Checks    []telemetry.HealthCheck
	Counters  *telemetry.Counters
	Logger    *telemetry.Logger
	Now       func() time.Time

	// Replays lets POST /charts honor the Idempotency-Key header.
	Replays *idempotency.Cache
}

// Handler returns the routed handler wrapped in CORS, request id, logging
// and panic recovery.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = telemetry.Nop()
	}
	if s.Formatter == nil {
		s.Formatter = chart.NewFormatter(time.UTC)
	}
	if s.Styles == nil {
		s.Styles = component.RegisterStyles()
	}

	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/styles.css", s.handleStyles).Methods(http.MethodGet)
	r.HandleFunc("/format", s.handleFormat).Methods(http.MethodPost)

	r.HandleFunc("/charts", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/charts", s.handleCreate).Methods(http.MethodPost)

	c := r.PathPrefix("/charts/{id}").Subrouter()
	c.HandleFunc("", s.handleGet).Methods(http.MethodGet)
	c.HandleFunc("", s.handleDelete).Methods(http.MethodDelete)
	c.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	c.HandleFunc("/attributes", s.handlePatchAttributes).Methods(http.MethodPatch)
	c.HandleFunc("/attributes/{name}", s.handlePutAttribute).Methods(http.MethodPut)
	c.HandleFunc("/attributes/{name}", s.handleDeleteAttribute).Methods(http.MethodDelete)
	c.HandleFunc("/flush", s.handleFlush).Methods(http.MethodPost)
	c.HandleFunc("/delay", s.handleDelay).Methods(http.MethodPut)
	c.HandleFunc("/data", s.handleUpdateData).Methods(http.MethodPut)
	c.HandleFunc("/data", s.handleClearData).Methods(http.MethodDelete)
	c.HandleFunc("/options", s.handleSetOptions).Methods(http.MethodPut)
	c.HandleFunc("/options", s.handleUpdateOptions).Methods(http.MethodPatch)
	c.HandleFunc("/loading", s.handleLoading).Methods(http.MethodPut)
	c.HandleFunc("/series", s.handleAddSeries).Methods(http.MethodPost)
	c.HandleFunc("/series/{name}/value", s.handleSeriesValue).Methods(http.MethodPut)
	c.HandleFunc("/series/{name}/categories/{category}", s.handleSeriesCategoryValue).Methods(http.MethodPut)
	c.HandleFunc("/series/{name}/color", s.handleSeriesColor).Methods(http.MethodPut)
	c.HandleFunc("/categories", s.handleAddCategories).Methods(http.MethodPost)
	c.HandleFunc("/colors", s.handleAddColors).Methods(http.MethodPost)
	c.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	c.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	c.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	var h http.Handler = r
	h = recoverer(s.Logger)(h)
	h = requestLoggingMiddleware(s.Logger, s.Counters)(h)
	h = requestIDMiddleware(h)
	return withCORS(h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
