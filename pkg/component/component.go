// Package component hosts one chart: it owns the attribute state, the series
// store, the update scheduler and the rendered instance, and is the single
// entry point for mutations.
package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/scheduler"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/seriesstore"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

// MissingEngineMessage is shown when no rendering engine is configured.
const MissingEngineMessage = "Rendering engine is not available"

// ErrClosed is returned by mutations after Close.
var ErrClosed = errors.New("component: closed")

// Attributes applied by the visual step of a flush. Together with data and
// options they form the patch set; any other pending attribute forces a rebuild.
var patchAttrs = func() map[chart.Attr]struct{} {
	m := map[chart.Attr]struct{}{chart.AttrData: {}, chart.AttrOptions: {}}
	for _, a := range chart.VisualAttrs() {
		m[a] = struct{}{}
	}
	return m
}()

type Options struct {
	ID      string
	Engine  Engine
	Surface Surface
	Logger  *telemetry.Logger
	Clock   scheduler.Clock
	Delay   time.Duration

	// OnChange receives a snapshot after every accepted mutation. It runs
	// with the component lock held and must not call back into the component.
	OnChange func(Snapshot)
}

type Component struct {
	mu       sync.Mutex
	id       string
	engine   Engine
	surface  Surface
	log      *telemetry.Logger
	onChange func(Snapshot)

	st    *chart.State
	store *seriesstore.Store
	sched *scheduler.Scheduler
	inst  Instance

	progOptions map[string]any
	last        chart.Result
	lastErr     error
	opCtx       context.Context
	closed      bool
}

func New(opt Options) *Component {
	log := opt.Logger
	if log == nil {
		log = telemetry.Nop()
	}
	surface := opt.Surface
	if surface == nil {
		surface = nopSurface{}
	}
	c := &Component{
		id:          opt.ID,
		engine:      opt.Engine,
		surface:     surface,
		log:         log.With(map[string]any{"chart_id": opt.ID}),
		onChange:    opt.OnChange,
		st:          chart.NewState(),
		store:       seriesstore.New(),
		progOptions: map[string]any{},
	}
	c.sched = scheduler.New(scheduler.Options{
		Delay:   opt.Delay,
		Clock:   opt.Clock,
		Locker:  &c.mu,
		Rebuild: func(chart.Attr, chart.Mutation) { _ = c.rebuildLocked() },
		Flush:   c.flushLocked,
		Valid:   func() bool { return c.inst == nil || c.inst.Attached() },
		Logger:  c.log,
	})
	return c
}

func (c *Component) ID() string { return c.id }

// enter locks the component for an operation running under ctx.
func (c *Component) enter(ctx context.Context) func() {
	c.mu.Lock()
	c.opCtx = ctx
	return func() {
		c.opCtx = nil
		c.mu.Unlock()
	}
}

func (c *Component) ctx() context.Context {
	if c.opCtx != nil {
		return c.opCtx
	}
	return context.Background()
}

// SetAttribute validates name and records the new value.
func (c *Component) SetAttribute(ctx context.Context, name, value string) error {
	return c.Mutate(ctx, name, chart.SetTo(value))
}

func (c *Component) RemoveAttribute(ctx context.Context, name string) error {
	return c.Mutate(ctx, name, chart.Removed())
}

// Mutate is the single attribute mutation entry point.
func (c *Component) Mutate(ctx context.Context, name string, m chart.Mutation) error {
	a, err := chart.ParseAttr(name)
	if err != nil {
		return err
	}
	defer c.enter(ctx)()
	return c.applyLocked(a, m)
}

// MutateMany applies several mutations in map order under one lock.
func (c *Component) MutateMany(ctx context.Context, muts map[string]chart.Mutation) error {
	parsed := make(map[chart.Attr]chart.Mutation, len(muts))
	for name, m := range muts {
		a, err := chart.ParseAttr(name)
		if err != nil {
			return err
		}
		parsed[a] = m
	}
	defer c.enter(ctx)()
	// type last so its immediate rebuild sees the other values
	for a, m := range parsed {
		if a == chart.AttrType {
			continue
		}
		if err := c.applyLocked(a, m); err != nil {
			return err
		}
	}
	if m, ok := parsed[chart.AttrType]; ok {
		return c.applyLocked(chart.AttrType, m)
	}
	return nil
}

func (c *Component) applyLocked(a chart.Attr, m chart.Mutation) error {
	if c.closed {
		return ErrClosed
	}
	if !c.st.Apply(a, m) {
		return nil
	}
	if a == chart.AttrLoading {
		c.surface.SetLoading(c.st.PresentNotFalse(chart.AttrLoading))
		c.changedLocked()
		return nil
	}
	c.sched.Record(a, m)
	c.changedLocked()
	return nil
}

// Mount performs the initial full build.
func (c *Component) Mount(ctx context.Context) error {
	defer c.enter(ctx)()
	if c.closed {
		return ErrClosed
	}
	return c.rebuildLocked()
}

// rebuildLocked destroys the current instance and constructs a new one from
// the full attribute state.
func (c *Component) rebuildLocked() error {
	ctx := c.ctx()
	c.destroyLocked()

	if c.engine == nil {
		err := cerr.New(cerr.RenderMissing, MissingEngineMessage)
		c.failLocked(err)
		return err
	}

	res, err := c.buildLocked()
	if err != nil {
		c.failLocked(err)
		return err
	}
	cfg := res.Config

	var inst Instance
	err = call(func() error {
		var err error
		inst, err = c.engine.Construct(ctx, c.id, cfg, res.Series)
		if err != nil {
			return err
		}
		return inst.Render(ctx)
	})
	if err != nil {
		if inst != nil {
			_ = call(func() error { return inst.Destroy(ctx) })
		}
		wrapped := cerr.Wrap(cerr.RenderFailed, err, fmt.Sprintf("Error creating %s chart: %v", res.Kind, err))
		c.failLocked(wrapped)
		return wrapped
	}

	c.inst = inst
	c.last = res
	c.lastErr = nil
	c.surface.ClearError()
	c.log.Info(ctx, "component.rendered", map[string]any{
		"kind":   string(res.Kind),
		"series": res.Series.Len(),
	})
	return nil
}

// buildLocked runs the builder and layers the programmatic options on top.
func (c *Component) buildLocked() (chart.Result, error) {
	res, err := chart.Build(c.st)
	c.logWarnings(c.ctx(), res.Warnings)
	if err != nil {
		return res, err
	}
	if len(c.progOptions) > 0 {
		res.Config, _ = config.Merge(res.Config, c.progOptions, config.MergeOptions{})
		config.Set(res.Config, "chart.type", res.Descriptor.EngineType)
	}
	return res, nil
}

func (c *Component) destroyLocked() {
	if c.inst == nil {
		return
	}
	inst := c.inst
	c.inst = nil
	if err := call(func() error { return inst.Destroy(c.ctx()) }); err != nil {
		c.log.Warn(c.ctx(), "component.destroy_failed", map[string]any{"error": err.Error()})
	}
}

// flushLocked applies a debounced batch: series, then explicit options, then
// the visual fragment. Each step is isolated from failures of the others.
func (c *Component) flushLocked(batch scheduler.Batch) {
	if c.inst == nil || needsRebuild(batch) {
		_ = c.rebuildLocked()
		return
	}
	ctx := c.ctx()

	if batch.Has(chart.AttrData) {
		c.step(ctx, "series", func() error {
			res, err := c.buildLocked()
			if err != nil {
				c.failLocked(err)
				return nil
			}
			if err := c.inst.UpdateSeries(ctx, res.Series); err != nil {
				return err
			}
			c.last.Series = res.Series
			c.last.Labels = res.Labels
			c.lastErr = nil
			c.surface.ClearError()
			if res.Labels == nil {
				return nil
			}
			patch := map[string]any{"labels": res.Config["labels"]}
			if colors, ok := res.Config["colors"]; ok {
				patch["colors"] = colors
			}
			return c.inst.UpdateOptions(ctx, patch)
		})
	}

	if batch.Has(chart.AttrOptions) {
		c.step(ctx, "options", func() error {
			raw, _ := c.st.Get(chart.AttrOptions)
			user, err := chart.ParseJSONObject(raw)
			if err != nil {
				c.logWarnings(ctx, []error{err})
				return nil
			}
			return c.inst.UpdateOptions(ctx, user)
		})
	}

	if batch.HasAny(chart.VisualAttrs()...) {
		c.step(ctx, "visual", func() error {
			res, err := c.buildLocked()
			if err != nil {
				return nil
			}
			return c.inst.UpdateOptions(ctx, chart.VisualFragment(res.Config, batch.Has))
		})
	}
}

func needsRebuild(batch scheduler.Batch) bool {
	for a := range batch {
		if _, ok := patchAttrs[a]; !ok {
			return true
		}
	}
	return false
}

func (c *Component) step(ctx context.Context, name string, fn func() error) {
	if err := call(fn); err != nil {
		c.lastErr = cerr.Wrap(cerr.RenderFailed, err, fmt.Sprintf("%s update failed: %v", name, err))
		c.log.Warn(ctx, "component.flush_step_failed", map[string]any{
			"step":  name,
			"error": err.Error(),
		})
	}
}

func (c *Component) failLocked(err error) {
	c.lastErr = err
	c.surface.ShowError(cerr.MessageOf(err))
	fields := map[string]any{"code": string(cerr.CodeOf(err)), "error": err.Error()}
	switch cerr.CodeOf(err) {
	case cerr.DataEmpty, cerr.ChartUnsupportedType:
		c.log.Warn(c.ctx(), "component.build_rejected", fields)
	default:
		c.log.Error(c.ctx(), "component.build_failed", fields)
	}
}

func (c *Component) logWarnings(ctx context.Context, warnings []error) {
	for _, w := range warnings {
		c.log.Warn(ctx, "component.input_malformed", map[string]any{
			"code":  string(cerr.CodeOf(w)),
			"error": w.Error(),
		})
	}
}

func (c *Component) changedLocked() {
	if c.onChange != nil {
		c.onChange(c.snapshotLocked())
	}
}

// ForceUpdate flushes pending mutations now.
func (c *Component) ForceUpdate(ctx context.Context) {
	defer c.enter(ctx)()
	c.sched.ForceNow()
}

// SetUpdateDelay changes the debounce window; negative values are rejected.
func (c *Component) SetUpdateDelay(d time.Duration) error {
	if d < 0 {
		return cerr.Newf(cerr.RequestInvalid, "update delay must be >= 0, got %s", d)
	}
	return c.sched.SetDelay(d)
}

func (c *Component) UpdateDelay() time.Duration { return c.sched.Delay() }

// SchedulerState reports the debounce state.
func (c *Component) SchedulerState() scheduler.State { return c.sched.State() }

// Attributes returns a copy of the current attribute values.
func (c *Component) Attributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.Map()
}

// Build derives the configuration for the current attributes without rendering.
func (c *Component) Build() (chart.Result, error) {
	c.mu.Lock()
	st := c.st.Clone()
	c.mu.Unlock()
	return chart.Build(st)
}

// LastError is the most recent build or render error, nil after a success.
func (c *Component) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Component) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inst != nil
}

// Close cancels pending updates and destroys the rendered instance.
func (c *Component) Close(ctx context.Context) {
	c.sched.Stop()
	defer c.enter(ctx)()
	c.destroyLocked()
	c.closed = true
}
