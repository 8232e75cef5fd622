package component

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/seriesstore"
)

// Data returns the decoded data attribute (nil when absent or malformed).
func (c *Component) Data() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.st.Get(chart.AttrData)
	if !ok || raw == "" {
		return nil
	}
	v, err := chart.DecodeJSON([]byte(raw))
	if err != nil {
		return nil
	}
	return v
}

// SetData encodes v as the data attribute; the update is debounced.
func (c *Component) SetData(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return cerr.Wrap(cerr.DataMalformed, err, "data is not json encodable")
	}
	defer c.enter(ctx)()
	return c.applyLocked(chart.AttrData, chart.SetTo(string(b)))
}

// UpdateData is SetData followed by an immediate flush.
func (c *Component) UpdateData(ctx context.Context, v any) error {
	if err := c.SetData(ctx, v); err != nil {
		return err
	}
	c.ForceUpdate(ctx)
	return nil
}

// Options returns a copy of the programmatic options.
func (c *Component) Options() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.progOptions))
	for k, v := range c.progOptions {
		out[k] = v
	}
	return out
}

// SetOptions shallow-merges m into the programmatic options and pushes the
// result to the rendered chart. Programmatic options also apply on every rebuild.
func (c *Component) SetOptions(ctx context.Context, m map[string]any) error {
	defer c.enter(ctx)()
	if c.closed {
		return ErrClosed
	}
	for k, v := range m {
		c.progOptions[k] = v
	}
	if c.inst == nil {
		return nil
	}
	patch := make(map[string]any, len(c.progOptions))
	for k, v := range c.progOptions {
		patch[k] = v
	}
	if err := call(func() error { return c.inst.UpdateOptions(c.ctx(), patch) }); err != nil {
		return cerr.Wrap(cerr.RenderFailed, err, "options update failed: "+err.Error())
	}
	return nil
}

// UpdateOptions shallow-merges m over the options attribute and stores the
// result back as the attribute.
func (c *Component) UpdateOptions(ctx context.Context, m map[string]any) error {
	defer c.enter(ctx)()
	raw, _ := c.st.Get(chart.AttrOptions)
	cur, err := chart.ParseJSONObject(raw)
	if err != nil {
		c.logWarnings(c.ctx(), []error{err})
	}
	for k, v := range m {
		cur[k] = v
	}
	b, err := json.Marshal(cur)
	if err != nil {
		return cerr.Wrap(cerr.OptionsMalformed, err, "options are not json encodable")
	}
	return c.applyLocked(chart.AttrOptions, chart.SetTo(string(b)))
}

// SetLoading toggles the loading overlay immediately.
func (c *Component) SetLoading(ctx context.Context, on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	defer c.enter(ctx)()
	return c.applyLocked(chart.AttrLoading, chart.SetTo(v))
}

// ExportData returns the series currently rendered, or the last built series
// when nothing is mounted.
func (c *Component) ExportData() chart.SeriesSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst != nil {
		var out chart.SeriesSet
		if err := call(func() error { out = c.inst.Data(); return nil }); err == nil {
			return out
		}
	}
	return c.last.Series
}

// ClearData empties the rendered series and the store, and drops the data
// and categories attributes without scheduling an update.
func (c *Component) ClearData(ctx context.Context) error {
	defer c.enter(ctx)()
	if c.closed {
		return ErrClosed
	}
	var errs []error
	if c.inst != nil {
		family := chart.FamilyOf(c.st.String(chart.AttrType, ""))
		if err := call(func() error {
			return c.inst.UpdateSeries(c.ctx(), chart.SeriesSet{Family: family})
		}); err != nil {
			errs = append(errs, err)
		}
		reset := map[string]any{
			"xaxis":  map[string]any{"categories": []any{}},
			"labels": []any{},
		}
		if err := call(func() error { return c.inst.UpdateOptions(c.ctx(), reset) }); err != nil {
			errs = append(errs, err)
		}
	}
	c.store.Clear()
	c.st.Remove(chart.AttrData)
	c.st.Remove(chart.AttrCategories)
	c.last.Series = chart.SeriesSet{}
	c.changedLocked()
	if err := errors.Join(errs...); err != nil {
		return cerr.Wrap(cerr.RenderFailed, err, "clear failed: "+err.Error())
	}
	return nil
}

// ---- series store ----

func (c *Component) AddSeries(name, color string, values []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddSeries(name, color, values)
	c.changedLocked()
}

func (c *Component) AddSeriesValue(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddSeriesValue(name, v)
	c.changedLocked()
}

// AddXY is AddSeriesValue: the series named x holds the single value y.
func (c *Component) AddXY(x string, y any) { c.AddSeriesValue(x, y) }

// AddSeriesCategoryValue reports whether the value was written; unknown
// categories are ignored.
func (c *Component) AddSeriesCategoryValue(name, category string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.store.AddSeriesCategoryValue(name, category, v)
	if !ok {
		c.log.Debug(c.ctx(), "component.category_unknown", map[string]any{
			"series":   name,
			"category": category,
		})
	}
	c.changedLocked()
	return ok
}

func (c *Component) AddCategory(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddCategory(name)
	c.changedLocked()
}

func (c *Component) AddCategories(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddCategories(names)
	c.changedLocked()
}

func (c *Component) SetSeriesColor(name, color string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.store.SetSeriesColor(name, color)
	if ok {
		c.changedLocked()
	}
	return ok
}

func (c *Component) AddColors(colors []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.AddColors(colors)
	c.changedLocked()
}

// ClearStore resets the series store only.
func (c *Component) ClearStore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Clear()
	c.changedLocked()
}

// StoreSnapshot returns the current store contents.
func (c *Component) StoreSnapshot() seriesstore.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Refresh mirrors the store into the data, categories and colors attributes
// and pushes the rebuilt configuration and series to the rendered chart. The
// mirror is one-way and does not schedule an update.
func (c *Component) Refresh(ctx context.Context) error {
	defer c.enter(ctx)()
	if c.closed {
		return ErrClosed
	}
	family := chart.FamilyOf(c.st.String(chart.AttrType, ""))
	set := c.store.Materialize(family)
	if err := c.mirrorLocked(set, c.store.Categories(), c.store.Colors()); err != nil {
		return err
	}
	c.changedLocked()

	if c.inst == nil {
		return c.rebuildLocked()
	}

	res, err := c.buildLocked()
	if err != nil {
		c.failLocked(err)
		return err
	}
	var errs []error
	if err := call(func() error { return c.inst.UpdateOptions(c.ctx(), res.Config) }); err != nil {
		errs = append(errs, err)
	}
	if err := call(func() error { return c.inst.UpdateSeries(c.ctx(), res.Series) }); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		wrapped := cerr.Wrap(cerr.RenderFailed, err, "refresh failed: "+err.Error())
		c.lastErr = wrapped
		c.log.Warn(c.ctx(), "component.refresh_failed", map[string]any{"error": err.Error()})
		return wrapped
	}
	c.last = res
	c.lastErr = nil
	c.surface.ClearError()
	return nil
}

func (c *Component) mirrorLocked(set chart.SeriesSet, cats, colors []string) error {
	data, err := json.Marshal(set.ToPayload())
	if err != nil {
		return fmt.Errorf("component: encode series: %w", err)
	}
	c.st.Set(chart.AttrData, string(data))
	if err := setList(c.st, chart.AttrCategories, cats); err != nil {
		return err
	}
	return setList(c.st, chart.AttrColors, colors)
}

func setList(st *chart.State, a chart.Attr, list []string) error {
	if len(list) == 0 {
		st.Remove(a)
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("component: encode %s: %w", a, err)
	}
	st.Set(a, string(b))
	return nil
}
