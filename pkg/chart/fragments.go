package chart

import "github.com/Ap3pp3rs94/chartly-apex/pkg/config"

// visualAttrs are patched in place on a debounced flush; the paths are the
// configuration keys each one feeds in a full build.
var visualAttrs = []struct {
	attr  Attr
	paths []string
}{
	{AttrTitle, []string{"title.text"}},
	{AttrHeight, []string{"chart.height"}},
	{AttrWidth, []string{"chart.width"}},
	{AttrShowLegend, []string{"legend.show"}},
	{AttrLegendPosition, []string{"legend.show", "legend.position", "legend.verticalAlign", "legend.offsetX"}},
	{AttrShowToolbar, []string{"chart.toolbar.show"}},
	{AttrShowDataLabels, []string{"dataLabels.enabled"}},
	{AttrDataLabelOrientation, []string{"plotOptions.bar.dataLabels.orientation"}},
	{AttrDataLabelPosition, []string{"plotOptions.bar.dataLabels.position", "dataLabels.offsetX"}},
}

// VisualAttrs lists the attributes VisualFragment can patch.
func VisualAttrs() []Attr {
	out := make([]Attr, len(visualAttrs))
	for i, v := range visualAttrs {
		out[i] = v.attr
	}
	return out
}

// VisualFragment picks from a built configuration the keys fed by the changed
// visual attributes. Keys the build did not produce are left out.
func VisualFragment(cfg map[string]any, changed func(Attr) bool) map[string]any {
	out := map[string]any{}
	for _, v := range visualAttrs {
		if !changed(v.attr) {
			continue
		}
		for _, p := range v.paths {
			if val, ok := config.Lookup(cfg, p); ok {
				config.Set(out, p, val)
			}
		}
	}
	return out
}
