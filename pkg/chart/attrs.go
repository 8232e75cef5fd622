package chart

import (
	"sort"
	"strconv"
	"strings"

	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

// Attr names one entry of the fixed attribute surface.
type Attr string

const (
	AttrType                    Attr = "type"
	AttrData                    Attr = "data"
	AttrOptions                 Attr = "options"
	AttrHeight                  Attr = "height"
	AttrWidth                   Attr = "width"
	AttrTheme                   Attr = "theme"
	AttrLoading                 Attr = "loading"
	AttrTitle                   Attr = "title"
	AttrShowLegend              Attr = "show-legend"
	AttrLegendPosition          Attr = "legend-position"
	AttrShowToolbar             Attr = "show-toolbar"
	AttrShowDataLabels          Attr = "show-data-labels"
	AttrDataLabelOrientation    Attr = "data-label-orientation"
	AttrDataLabelPosition       Attr = "data-label-position"
	AttrXAxisTitle              Attr = "x-axis-title"
	AttrYAxisTitle              Attr = "y-axis-title"
	AttrXAxisOffsetY            Attr = "x-axis-offsety"
	AttrXAxisLabelRotate        Attr = "x-axis-label-rotate"
	AttrXAxisLabelRotateOffsetY Attr = "x-axis-label-rotate-offsety"
	AttrXAxisOutputFormat       Attr = "x-axis-output-format"
	AttrYAxisOutputFormat       Attr = "y-axis-output-format"
	AttrCategories              Attr = "categories"
	AttrColors                  Attr = "colors"
	AttrCurve                   Attr = "curve"
	AttrLineWidth               Attr = "line-width"
	AttrMarkerSize              Attr = "marker-size"
	AttrBorderRadius            Attr = "border-radius"
	AttrColumnWidth             Attr = "column-width"
	AttrBarOrientation          Attr = "bar-orientation"
	AttrStacked                 Attr = "stacked"
	AttrGradient                Attr = "gradient"
	AttrRealtime                Attr = "realtime"
	AttrDonutShowTotal          Attr = "donut-show-total"
	AttrHollowSize              Attr = "hollow-size"
	AttrTrackWidth              Attr = "track-width"
	AttrStartAngle              Attr = "start-angle"
	AttrEndAngle                Attr = "end-angle"
	AttrDashedRadial            Attr = "dashed-radial"
	AttrBarLabels               Attr = "bar-labels"
)

var knownAttrs = map[Attr]struct{}{}

func init() {
	for _, a := range AllAttrs() {
		knownAttrs[a] = struct{}{}
	}
}

// AllAttrs lists the attribute surface in declaration order.
func AllAttrs() []Attr {
	return []Attr{
		AttrType, AttrData, AttrOptions, AttrHeight, AttrWidth, AttrTheme, AttrLoading, AttrTitle,
		AttrShowLegend, AttrLegendPosition, AttrShowToolbar, AttrShowDataLabels,
		AttrDataLabelOrientation, AttrDataLabelPosition, AttrXAxisTitle, AttrYAxisTitle,
		AttrXAxisOffsetY, AttrXAxisLabelRotate, AttrXAxisLabelRotateOffsetY,
		AttrXAxisOutputFormat, AttrYAxisOutputFormat, AttrCategories, AttrColors, AttrCurve,
		AttrLineWidth, AttrMarkerSize, AttrBorderRadius, AttrColumnWidth, AttrBarOrientation,
		AttrStacked, AttrGradient, AttrRealtime, AttrDonutShowTotal, AttrHollowSize,
		AttrTrackWidth, AttrStartAngle, AttrEndAngle, AttrDashedRadial, AttrBarLabels,
	}
}

// ParseAttr validates an attribute name (case-insensitive, trimmed).
func ParseAttr(name string) (Attr, error) {
	a := Attr(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := knownAttrs[a]; !ok {
		return "", cerr.Newf(cerr.AttributeUnknown, "unknown attribute %q", name)
	}
	return a, nil
}

// Mutation is one attribute change: a new value, or removal when Present is false.
type Mutation struct {
	Value   string
	Present bool
}

func SetTo(v string) Mutation { return Mutation{Value: v, Present: true} }

func Removed() Mutation { return Mutation{} }

// State is the current attribute mapping. Absent attributes have no entry.
// State is not safe for concurrent use; the owning component serializes access.
type State struct {
	vals map[Attr]string
}

func NewState() *State { return &State{vals: map[Attr]string{}} }

// StateFrom builds a state from a plain map, rejecting unknown names.
func StateFrom(m map[string]string) (*State, error) {
	s := NewState()
	for k, v := range m {
		a, err := ParseAttr(k)
		if err != nil {
			return nil, err
		}
		s.vals[a] = v
	}
	return s, nil
}

func (s *State) Get(a Attr) (string, bool) {
	v, ok := s.vals[a]
	return v, ok
}

func (s *State) Has(a Attr) bool {
	_, ok := s.vals[a]
	return ok
}

func (s *State) Set(a Attr, v string) { s.vals[a] = v }

func (s *State) Remove(a Attr) { delete(s.vals, a) }

// Apply records m and reports whether the stored value changed.
func (s *State) Apply(a Attr, m Mutation) bool {
	old, had := s.vals[a]
	if !m.Present {
		delete(s.vals, a)
		return had
	}
	s.vals[a] = m.Value
	return !had || old != m.Value
}

func (s *State) Clone() *State {
	c := NewState()
	for k, v := range s.vals {
		c.vals[k] = v
	}
	return c
}

// Map returns a copy keyed by attribute name.
func (s *State) Map() map[string]string {
	out := make(map[string]string, len(s.vals))
	for k, v := range s.vals {
		out[string(k)] = v
	}
	return out
}

// Names returns the present attributes sorted by name.
func (s *State) Names() []Attr {
	out := make([]Attr, 0, len(s.vals))
	for k := range s.vals {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String returns the value or def when absent or empty.
func (s *State) String(a Attr, def string) string {
	if v, ok := s.vals[a]; ok && v != "" {
		return v
	}
	return def
}

// IsTrue is the strict flag reading: only "true" enables.
func (s *State) IsTrue(a Attr) bool {
	return s.vals[a] == "true"
}

// NotFalse is the opt-out flag reading: anything but an explicit "false" enables.
func (s *State) NotFalse(a Attr) bool {
	return s.vals[a] != "false"
}

// PresentNotFalse enables when the attribute exists and is not "false".
func (s *State) PresentNotFalse(a Attr) bool {
	v, ok := s.vals[a]
	return ok && v != "false"
}

// Int parses an integer prefix ("12px" => 12); def when absent or unparsable.
func (s *State) Int(a Attr, def int) int {
	v, ok := s.vals[a]
	if !ok {
		return def
	}
	n, ok := parseIntPrefix(v)
	if !ok {
		return def
	}
	return n
}

// NonZeroInt is Int that also maps 0 to def.
func (s *State) NonZeroInt(a Attr, def int) int {
	n := s.Int(a, def)
	if n == 0 {
		return def
	}
	return n
}

func parseIntPrefix(v string) (int, bool) {
	v = strings.TrimSpace(v)
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	digits := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
