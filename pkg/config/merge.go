package config

import (
	"fmt"
	"sort"
	"strings"
)

// Deterministic deep merge for configuration trees (map[string]any).
//
// Semantics:
// - Later layers win: src overrides dst.
// - map + map => recursive merge.
// - arrays and scalars => replace wholesale (arrays never concatenate).
// - inputs are never mutated; merged subtrees are copied on write.

type MergeOptions struct {
	// MaxDepth bounds recursion. When exceeded, src subtree replaces dst subtree and a warning is recorded.
	// Default: 32
	MaxDepth int

	// MaxNodes bounds total visited nodes.
	// Default: 250000
	MaxNodes int

	// MaxWarnings bounds report growth.
	// Default: 64
	MaxWarnings int
}

type MergeWarning struct {
	Code string `json:"code"`
	Path string `json:"path,omitempty"` // json-ish path: $.a.b
	Msg  string `json:"msg"`
}

type MergeReport struct {
	Warnings []MergeWarning `json:"warnings,omitempty"`
	Nodes    int            `json:"nodes"`
	DepthHit int            `json:"depth_hit"`
}

func (r MergeReport) HasWarnings() bool { return len(r.Warnings) > 0 }

func (r *MergeReport) warn(opts MergeOptions, code, path, msg string) {
	if opts.MaxWarnings > 0 && len(r.Warnings) >= opts.MaxWarnings {
		return
	}
	r.Warnings = append(r.Warnings, MergeWarning{
		Code: strings.TrimSpace(code),
		Path: strings.TrimSpace(path),
		Msg:  strings.TrimSpace(msg),
	})
}

func defaultMergeOptions(opts MergeOptions) MergeOptions {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 32
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = 250000
	}
	if opts.MaxWarnings <= 0 {
		opts.MaxWarnings = 64
	}
	return opts
}

// Merge merges src into dst deterministically and returns a new map.
func Merge(dst, src map[string]any, opts MergeOptions) (map[string]any, MergeReport) {
	return MergeMany([]map[string]any{dst, src}, opts)
}

// MergeMany folds layers in order: layers[0] then layers[1] then ...
// Later layers win. Nil layers are skipped.
func MergeMany(layers []map[string]any, opts MergeOptions) (map[string]any, MergeReport) {
	opts = defaultMergeOptions(opts)
	rep := MergeReport{Warnings: make([]MergeWarning, 0, 8)}

	out := map[string]any{}
	nodeBudget := opts.MaxNodes
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		out = mergeMap(out, layer, "$", 0, &nodeBudget, opts, &rep)
	}
	rep.Nodes = opts.MaxNodes - nodeBudget
	return out, rep
}

func mergeMap(dst, src map[string]any, path string, depth int, nodeBudget *int, opts MergeOptions, rep *MergeReport) map[string]any {
	if *nodeBudget <= 0 {
		rep.warn(opts, "limits.nodes", path, fmt.Sprintf("max nodes exceeded (%d)", opts.MaxNodes))
		return src
	}
	*nodeBudget--

	if depth >= opts.MaxDepth {
		rep.DepthHit++
		rep.warn(opts, "limits.depth", path, fmt.Sprintf("max depth exceeded (%d); subtree replaced", opts.MaxDepth))
		return src
	}
	if dst == nil {
		dst = map[string]any{}
	}
	if src == nil {
		return dst
	}

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// copy-on-write for determinism and isolation
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for _, k := range keys {
		sv := src[k]
		dv, exists := out[k]
		if !exists {
			out[k] = sv
			continue
		}
		out[k] = mergeValue(dv, sv, joinPath(path, k), depth+1, nodeBudget, opts, rep)
	}
	return out
}

func mergeValue(dst any, src any, path string, depth int, nodeBudget *int, opts MergeOptions, rep *MergeReport) any {
	if *nodeBudget <= 0 {
		rep.warn(opts, "limits.nodes", path, fmt.Sprintf("max nodes exceeded (%d)", opts.MaxNodes))
		return src
	}
	*nodeBudget--

	dm, dok := dst.(map[string]any)
	sm, sok := src.(map[string]any)
	if dok && sok {
		return mergeMap(dm, sm, path, depth, nodeBudget, opts, rep)
	}

	if dst != nil && src != nil && kindOf(dst) != kindOf(src) {
		rep.warn(opts, "type.replace", path, fmt.Sprintf("type changed %s -> %s (replaced)", kindOf(dst), kindOf(src)))
	}
	return src
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any, []string, []float64, []int, []map[string]any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, int32, uint, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(base, key string) string {
	if base == "" || base == "$" {
		return "$." + key
	}
	return base + "." + key
}

// Clone deep-copies maps and []any slices; other values are shared.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return Clone(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// Lookup returns the value at a dotted path ("chart.toolbar.show").
func Lookup(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, seg := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at a dotted path, creating (or replacing non-object) intermediate maps.
// m is mutated; callers that share subtrees should Clone first.
func Set(m map[string]any, path string, v any) {
	segs := strings.Split(path, ".")
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// Fragment builds a nested map from dotted path/value pairs, in order.
func Fragment(pairs ...any) map[string]any {
	out := map[string]any{}
	for i := 0; i+1 < len(pairs); i += 2 {
		p, ok := pairs[i].(string)
		if !ok || p == "" {
			continue
		}
		Set(out, p, pairs[i+1])
	}
	return out
}
