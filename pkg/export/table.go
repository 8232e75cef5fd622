// Package export writes chart series as JSON, CSV or XLSX.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
)

// Table is a rectangular view of a series set: one column per series for
// array families, label/value pairs for collapsing families.
type Table struct {
	Header []string
	Rows   [][]any
}

// TableOf lays out set. categories name the rows of scalar series; labels
// name the rows of collapsing families.
func TableOf(set chart.SeriesSet, categories, labels []string) Table {
	if set.Family.Collapses() {
		t := Table{Header: []string{"label", "value"}}
		for i, se := range set.Series {
			name := se.Name
			if i < len(labels) && labels[i] != "" {
				name = labels[i]
			}
			if name == "" {
				name = "Item " + strconv.Itoa(i+1)
			}
			t.Rows = append(t.Rows, []any{name, se.Value})
		}
		return t
	}

	t := Table{Header: append([]string{"x"}, set.Names()...)}
	var keys []string
	xs := map[string]any{}
	cells := map[string][]any{}
	for si, se := range set.Series {
		for i, d := range se.Data {
			x, y := rowKey(d, i, categories)
			k := cellString(x)
			if _, ok := cells[k]; !ok {
				keys = append(keys, k)
				xs[k] = x
				cells[k] = make([]any, set.Len())
			}
			cells[k][si] = y
		}
	}
	for _, k := range keys {
		t.Rows = append(t.Rows, append([]any{xs[k]}, cells[k]...))
	}
	return t
}

func rowKey(d any, i int, categories []string) (x, y any) {
	if p, ok := d.(chart.Point); ok {
		return p.X, p.Y
	}
	if i < len(categories) {
		return categories[i], d
	}
	return float64(i + 1), d
}

// cellString renders a cell for text formats; nil is empty.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
