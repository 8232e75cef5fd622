package chart

// Option layers shared by every chart, then per-family fragments. Each call
// returns a fresh tree so layers can be merged and mutated independently.

func baseDefaults() map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"height": 350,
			"toolbar": map[string]any{
				"show": true,
				"tools": map[string]any{
					"download":  true,
					"selection": true,
					"zoom":      true,
					"zoomin":    true,
					"zoomout":   true,
					"pan":       true,
					"reset":     true,
				},
			},
			"animations": map[string]any{
				"enabled": true,
				"easing":  "easeinout",
				"speed":   800,
			},
			"fontFamily": "inherit",
			"zoom":       map[string]any{"enabled": false},
		},
		"tooltip": map[string]any{
			"enabled":   true,
			"shared":    false,
			"intersect": false,
		},
		"xaxis":      map[string]any{"tooltip": map[string]any{"enabled": false}},
		"yaxis":      map[string]any{"tooltip": map[string]any{"enabled": false}},
		"dataLabels": map[string]any{"enabled": false},
		"grid": map[string]any{
			"show":            true,
			"borderColor":     "#e7e7e7",
			"strokeDashArray": 3,
		},
		"responsive": []any{
			map[string]any{
				"breakpoint": 480,
				"options": map[string]any{
					"chart":  map[string]any{"width": "100%"},
					"legend": map[string]any{"position": "bottom"},
				},
			},
		},
	}
}

func titleDefaults(bold bool) map[string]any {
	style := map[string]any{"fontSize": "16px", "color": "#333"}
	if bold {
		style["fontWeight"] = "bold"
	}
	return map[string]any{"align": "left", "style": style}
}

func legendDefaults(seriesColors bool) map[string]any {
	return map[string]any{
		"horizontalAlign": "center",
		"floating":        false,
		"offsetX":         0,
		"offsetY":         0,
		"labels": map[string]any{
			"colors":          "#333",
			"useSeriesColors": seriesColors,
		},
	}
}

func gridDefaults() map[string]any {
	return map[string]any{
		"xaxis":   map[string]any{"lines": map[string]any{"show": true}},
		"yaxis":   map[string]any{"lines": map[string]any{"show": true}},
		"padding": map[string]any{"top": 10, "right": 20, "bottom": 10, "left": 10},
	}
}

func markerDefaults() map[string]any {
	return map[string]any{
		"strokeColors": "#fff",
		"strokeWidth":  2,
		"hover":        map[string]any{"sizeOffset": 2},
	}
}

func lineDefaults() map[string]any {
	return map[string]any{
		"title":   titleDefaults(false),
		"legend":  legendDefaults(false),
		"grid":    gridDefaults(),
		"markers": markerDefaults(),
	}
}

func areaDefaults() map[string]any {
	return map[string]any{
		"title":   titleDefaults(false),
		"legend":  legendDefaults(false),
		"grid":    gridDefaults(),
		"markers": markerDefaults(),
		"fill": map[string]any{
			"gradient": map[string]any{
				"shadeIntensity": 1,
				"opacityFrom":    0.7,
				"opacityTo":      0.2,
			},
		},
	}
}

func columnDefaults() map[string]any {
	return map[string]any{
		"title":  titleDefaults(false),
		"legend": legendDefaults(false),
		"grid":   gridDefaults(),
		"plotOptions": map[string]any{
			"bar": map[string]any{
				"horizontal":              false,
				"borderRadiusApplication": "around",
				"borderRadiusWhenStacked": "all",
			},
		},
	}
}

func barDefaults() map[string]any {
	return map[string]any{
		"title":  titleDefaults(false),
		"legend": legendDefaults(false),
		"grid":   gridDefaults(),
		"plotOptions": map[string]any{
			"bar": map[string]any{
				"horizontal":              true,
				"borderRadiusApplication": "around",
				"borderRadiusWhenStacked": "all",
				"startingShape":           "rounded",
				"endingShape":             "rounded",
			},
		},
		"dataLabels": map[string]any{
			"textAnchor": "middle",
			"style": map[string]any{
				"colors":   []any{"#fff"},
				"fontSize": "12px",
			},
			"dropShadow": map[string]any{"enabled": false},
		},
		"xaxis": map[string]any{"labels": map[string]any{"show": true}},
		"yaxis": map[string]any{"labels": map[string]any{"show": true}},
	}
}

func scatterDefaults() map[string]any {
	return map[string]any{
		"chart":   map[string]any{"zoom": map[string]any{"enabled": true, "type": "xy"}},
		"title":   titleDefaults(false),
		"legend":  legendDefaults(true),
		"markers": markerDefaults(),
		"xaxis": map[string]any{
			"tickAmount": 10,
			"labels":     map[string]any{"formatter": LabelFormatter{Format: FormatDecimal1}},
		},
		"yaxis": map[string]any{"tickAmount": 7},
	}
}

func radarDefaults() map[string]any {
	return map[string]any{
		"chart": map[string]any{
			"dropShadow": map[string]any{"enabled": true, "blur": 1, "left": 1, "top": 1},
		},
		"title":   titleDefaults(false),
		"legend":  legendDefaults(false),
		"fill":    map[string]any{"opacity": 0.1},
		"markers": markerDefaults(),
		"yaxis":   map[string]any{"stepSize": 20},
	}
}

func circularDataLabels() map[string]any {
	return map[string]any{
		"style": map[string]any{
			"fontSize": "12px",
			"colors":   []any{"#fff"},
		},
	}
}

func pieDefaults() map[string]any {
	return map[string]any{
		"title":      titleDefaults(true),
		"legend":     legendDefaults(false),
		"dataLabels": circularDataLabels(),
	}
}

func donutDefaults() map[string]any {
	return map[string]any{
		"title":      titleDefaults(true),
		"legend":     legendDefaults(false),
		"dataLabels": circularDataLabels(),
		"plotOptions": map[string]any{
			"pie": map[string]any{
				"donut": map[string]any{
					"labels": map[string]any{
						"total": map[string]any{"label": "Total"},
					},
				},
			},
		},
	}
}

func radialDefaults() map[string]any {
	return map[string]any{
		"title":  titleDefaults(true),
		"legend": legendDefaults(false),
		"dataLabels": map[string]any{
			"style": map[string]any{
				"fontSize": "14px",
				"colors":   []any{"#fff"},
			},
		},
		"plotOptions": map[string]any{
			"radialBar": map[string]any{
				"barLabels": map[string]any{
					"useSeriesColors": true,
					"offsetX":         -8,
					"fontSize":        "14px",
				},
			},
		},
	}
}

func polarDefaults() map[string]any {
	return map[string]any{
		"title":  titleDefaults(true),
		"legend": legendDefaults(false),
		"stroke": map[string]any{"colors": []any{"#fff"}},
		"fill":   map[string]any{"opacity": 0.8},
		"plotOptions": map[string]any{
			"polarArea": map[string]any{
				"rings":  map[string]any{"strokeWidth": 1, "strokeColor": "#e8e8e8"},
				"spokes": map[string]any{"strokeWidth": 1, "connectorColors": "#e8e8e8"},
			},
		},
	}
}

// ---- family-only attribute fragments ----

func barExtra(st *State) map[string]any {
	offset := 30
	if st.String(AttrDataLabelPosition, "center") == "center" {
		offset = 0
	}
	return map[string]any{"dataLabels": map[string]any{"offsetX": offset}}
}

func angleExtra(st *State) map[string]any {
	pie := map[string]any{}
	if st.Has(AttrStartAngle) {
		pie["startAngle"] = st.Int(AttrStartAngle, 0)
	}
	if st.Has(AttrEndAngle) {
		pie["endAngle"] = st.Int(AttrEndAngle, 360)
	}
	if len(pie) == 0 {
		return nil
	}
	return map[string]any{"plotOptions": map[string]any{"pie": pie}}
}

func donutExtra(st *State) map[string]any {
	donut := map[string]any{
		"labels": map[string]any{
			"show":  st.PresentNotFalse(AttrShowDataLabels),
			"total": map[string]any{"show": st.NotFalse(AttrDonutShowTotal)},
		},
	}
	if v, ok := st.Get(AttrHollowSize); ok && v != "" {
		donut["size"] = v
	}
	out := map[string]any{"plotOptions": map[string]any{"pie": map[string]any{"donut": donut}}}
	if a := angleExtra(st); a != nil {
		pie := out["plotOptions"].(map[string]any)["pie"].(map[string]any)
		for k, v := range a["plotOptions"].(map[string]any)["pie"].(map[string]any) {
			pie[k] = v
		}
	}
	return out
}

func radialExtra(st *State) map[string]any {
	out := map[string]any{
		"plotOptions": map[string]any{
			"radialBar": map[string]any{
				"hollow":     map[string]any{"size": st.String(AttrHollowSize, "50%")},
				"track":      map[string]any{"strokeWidth": st.String(AttrTrackWidth, "97%")},
				"startAngle": st.Int(AttrStartAngle, 0),
				"endAngle":   st.Int(AttrEndAngle, 360),
				"barLabels":  map[string]any{"enabled": st.IsTrue(AttrBarLabels)},
			},
		},
	}
	if st.IsTrue(AttrDashedRadial) {
		out["stroke"] = map[string]any{"dashArray": 4}
	}
	return out
}
