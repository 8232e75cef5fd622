package chart

import (
	"sort"
	"strconv"
)

// DeriveLabels returns exactly n labels for a collapsing family, taken from
// the first non-empty of: explicit categories, payload object keys, series
// names. Short lists are padded with "Item N".
func DeriveLabels(categories []string, p Payload, n int) []string {
	var src []string
	switch {
	case len(categories) > 0:
		src = categories
	case p.Shape == ShapeCategoryMap:
		src = p.Categories.Keys()
	default:
		src = payloadNames(p)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(src) && src[i] != "" {
			out[i] = src[i]
			continue
		}
		out[i] = "Item " + strconv.Itoa(i+1)
	}
	return out
}

func payloadNames(p Payload) []string {
	switch p.Shape {
	case ShapeNamedSeries:
		out := make([]string, len(p.Series))
		for i, ns := range p.Series {
			out[i] = ns.Name
		}
		return out
	case ShapePairs:
		out := make([]string, len(p.Pairs))
		for i, pr := range p.Pairs {
			out[i] = scalarString(pr.X)
		}
		return out
	case ShapePoints:
		out := make([]string, len(p.Points))
		for i, pr := range p.Points {
			out[i] = scalarString(pr.X)
		}
		return out
	}
	return nil
}

// SortByValue reorders (value, label, color) triples by value, largest first.
// The sort is stable and non-numeric values go last. Colors are reordered only
// when there is one per value; otherwise they are returned unchanged.
// The inputs are not modified.
func SortByValue(s SeriesSet, labels []string, colors []any) (SeriesSet, []string, []any) {
	n := s.Len()
	if n < 2 {
		return s, labels, colors
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, oka := toNumber(s.Series[idx[a]].Value)
		vb, okb := toNumber(s.Series[idx[b]].Value)
		if s.Series[idx[a]].Value == nil {
			oka = false
		}
		if s.Series[idx[b]].Value == nil {
			okb = false
		}
		switch {
		case oka && okb:
			return va > vb
		case oka:
			return true
		default:
			return false
		}
	})

	out := SeriesSet{Family: s.Family, Series: make([]Series, n)}
	outLabels := make([]string, len(labels))
	copy(outLabels, labels)
	for i, j := range idx {
		out.Series[i] = s.Series[j]
		if j < len(labels) && i < len(outLabels) {
			outLabels[i] = labels[j]
		}
	}
	outColors := colors
	if len(colors) >= n {
		outColors = make([]any, len(colors))
		copy(outColors, colors)
		for i, j := range idx {
			outColors[i] = colors[j]
		}
	}
	return out, outLabels, outColors
}
