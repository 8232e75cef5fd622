package chart

// DefaultSeriesName names the single series produced from unnamed payloads.
const DefaultSeriesName = "Series 1"

// Normalize converts a classified payload into the canonical series set for
// family. It is pure: equal inputs give equal, order-preserving output.
// Unsupported or empty payloads give an empty set.
func Normalize(p Payload, family Family) SeriesSet {
	out := SeriesSet{Family: family}
	switch p.Shape {
	case ShapeNamedSeries:
		for _, ns := range p.Series {
			se := Series{Name: ns.Name, Color: ns.Color, Dashed: ns.Dashed}
			if family.Collapses() {
				se.Value = collapse(ns.Body)
			} else {
				se.Data = seriesBody(ns.Body, family)
			}
			out.Series = append(out.Series, se)
		}
	case ShapePairs:
		if family.Collapses() {
			for _, pr := range p.Pairs {
				out.Series = append(out.Series, Series{Name: scalarString(pr.X), Value: pr.Y})
			}
			break
		}
		out.Series = []Series{{Name: DefaultSeriesName, Data: pairPoints(p.Pairs)}}
	case ShapePoints:
		if family.Collapses() {
			for _, pr := range p.Points {
				out.Series = append(out.Series, Series{Name: scalarString(pr.X), Value: pr.Y})
			}
			break
		}
		out.Series = []Series{{Name: DefaultSeriesName, Data: pairPoints(p.Points)}}
	case ShapeCategoryMap:
		if family.Collapses() {
			for _, m := range p.Categories {
				out.Series = append(out.Series, Series{Name: m.Key, Value: collapse(m.Value)})
			}
			break
		}
		if family == FamilyRadar {
			out.Series = []Series{{Name: DefaultSeriesName, Data: p.Categories.Values()}}
			break
		}
		out.Series = []Series{{Name: DefaultSeriesName, Data: objectPoints(p.Categories)}}
	case ShapeScalars:
		if family.Collapses() {
			for _, v := range p.Scalars {
				out.Series = append(out.Series, Series{Value: v})
			}
			break
		}
		out.Series = []Series{{Name: DefaultSeriesName, Data: append([]any(nil), p.Scalars...)}}
	}
	return out
}

// NormalizeValue classifies and normalizes an already-decoded value.
func NormalizeValue(v any, family Family) SeriesSet {
	return Normalize(Classify(v), family)
}

// seriesBody normalizes the data field of one named series for array families.
func seriesBody(body any, family Family) []any {
	switch x := body.(type) {
	case nil:
		return []any{}
	case []any:
		if len(x) == 0 {
			return []any{}
		}
		if _, ok := x[0].([]any); ok {
			return pairPoints(pairs(x))
		}
		if first, ok := x[0].(Object); ok && isPoint(first) {
			return pairPoints(points(x))
		}
		return append([]any(nil), x...)
	case Object:
		if family == FamilyRadar {
			return x.Values()
		}
		return objectPoints(x)
	default:
		return []any{x}
	}
}

// collapse reduces a series body to the single value collapsing families use.
func collapse(body any) any {
	switch x := body.(type) {
	case []any:
		if len(x) == 0 {
			return nil
		}
		if pr, ok := x[0].([]any); ok {
			if len(pr) > 1 {
				return pr[1]
			}
			return nil
		}
		return collapse(x[0])
	case Object:
		if len(x) == 0 {
			return nil
		}
		if y, ok := x.Get("y"); ok && isPoint(x) {
			return y
		}
		return collapse(x[0].Value)
	default:
		return x
	}
}

func pairPoints(ps []Pair) []any {
	out := make([]any, len(ps))
	for i, p := range ps {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func objectPoints(o Object) []any {
	out := make([]any, len(o))
	for i, m := range o {
		out[i] = Point{X: m.Key, Y: m.Value}
	}
	return out
}
