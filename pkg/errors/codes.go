package errors

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Code is a stable error code shared by the chart component, chartd and apexctl.
// Once published, codes should be treated as API-stable.
type Code string

// CodeMeta provides metadata useful for HTTP mapping, retry decisions, and documentation.
type CodeMeta struct {
	HTTPStatus  int    `json:"http_status"`
	Retryable   bool   `json:"retryable"`
	Kind        string `json:"kind"`        // client|server|dependency
	Description string `json:"description"` // human description
}

// ---- DATA ----
const (
	DataMalformed Code = "data.malformed"
	DataEmpty     Code = "data.empty"
)

// ---- OPTIONS / ATTRIBUTES ----
const (
	OptionsMalformed Code = "options.malformed"
	AttributeUnknown Code = "attribute.unknown"
	AttributeInvalid Code = "attribute.invalid"
)

// ---- CHART ----
const (
	ChartUnsupportedType Code = "chart.unsupported_type"
	ChartNotFound        Code = "chart.not_found"
	ChartExists          Code = "chart.exists"
)

// ---- RENDER ----
const (
	RenderFailed   Code = "render.failed"
	RenderMissing  Code = "render.missing"
	RenderDetached Code = "render.detached"
)

// ---- STORAGE ----
const (
	StorageUnavailable Code = "storage.unavailable"
)

// ---- REQUEST ----
const (
	RequestInvalid Code = "request.invalid"
)

// ---- INTERNAL ----
const (
	Internal Code = "internal"
)

// registry is intentionally unexported; use Meta/Known/List/ExportJSON.
var registry = map[Code]CodeMeta{
	// data
	DataMalformed: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "data payload is not valid json"},
	DataEmpty:     {HTTPStatus: 422, Retryable: false, Kind: "client", Description: "no usable series in data payload"},

	// options / attributes
	OptionsMalformed: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "options payload is not a json object"},
	AttributeUnknown: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "attribute name not recognized"},
	AttributeInvalid: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "attribute value invalid"},

	// chart
	ChartUnsupportedType: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "chart type recognized but not supported"},
	ChartNotFound:        {HTTPStatus: 404, Retryable: false, Kind: "client", Description: "chart not found"},
	ChartExists:          {HTTPStatus: 409, Retryable: false, Kind: "client", Description: "chart already exists"},

	// render
	RenderFailed:   {HTTPStatus: 502, Retryable: true, Kind: "dependency", Description: "rendering engine failed"},
	RenderMissing:  {HTTPStatus: 503, Retryable: true, Kind: "dependency", Description: "rendering engine not configured"},
	RenderDetached: {HTTPStatus: 409, Retryable: true, Kind: "dependency", Description: "render target detached"},

	// storage
	StorageUnavailable: {HTTPStatus: 503, Retryable: true, Kind: "dependency", Description: "storage unavailable"},

	// request
	RequestInvalid: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "request body invalid"},

	// internal
	Internal: {HTTPStatus: 500, Retryable: true, Kind: "server", Description: "internal error"},
}

// Meta returns metadata for a code.
func Meta(code Code) (CodeMeta, bool) {
	m, ok := registry[code]
	return m, ok
}

func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

// List returns all known codes sorted.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExportJSON returns stable JSON of all codes + meta.
func ExportJSON() []byte {
	type row struct {
		Code Code     `json:"code"`
		Meta CodeMeta `json:"meta"`
	}
	codes := List()
	rows := make([]row, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, row{Code: c, Meta: registry[c]})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return []byte("[]")
	}
	var buf bytes.Buffer
	_, _ = buf.Write(b)
	return buf.Bytes()
}
