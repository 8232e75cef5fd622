// Package charts keeps the live chart components of a chartd process.
package charts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/stream"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/scheduler"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

// Persister receives snapshots after every accepted mutation.
type Persister interface {
	Enqueue(snap component.Snapshot)
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Engine component.Engine
	// Sink carries error and loading notices for each chart.
	Sink      stream.Sink
	Persister Persister
	Logger    *telemetry.Logger
	Clock     scheduler.Clock
	Delay     time.Duration
	NewID     func() string
}

type Registry struct {
	opt Options
	log *telemetry.Logger

	mu     sync.RWMutex
	charts map[string]*component.Component
}

func New(opt Options) *Registry {
	if opt.Logger == nil {
		opt.Logger = telemetry.Nop()
	}
	if opt.NewID == nil {
		opt.NewID = uuid.NewString
	}
	return &Registry{opt: opt, log: opt.Logger, charts: map[string]*component.Component{}}
}

func (r *Registry) newComponent(id string) *component.Component {
	var surface component.Surface
	if r.opt.Sink != nil {
		surface = &stream.Surface{Sink: r.opt.Sink, Target: id}
	}
	var onChange func(component.Snapshot)
	if r.opt.Persister != nil {
		onChange = r.opt.Persister.Enqueue
	}
	return component.New(component.Options{
		ID:       id,
		Engine:   r.opt.Engine,
		Surface:  surface,
		Logger:   r.log,
		Clock:    r.opt.Clock,
		Delay:    r.opt.Delay,
		OnChange: onChange,
	})
}

// Create registers a new chart with attrs applied and flushed. Build errors
// leave the chart registered with LastError set.
func (r *Registry) Create(ctx context.Context, attrs map[string]string) (*component.Component, error) {
	muts := make(map[string]chart.Mutation, len(attrs))
	for name, v := range attrs {
		if _, err := chart.ParseAttr(name); err != nil {
			return nil, err
		}
		muts[name] = chart.SetTo(v)
	}

	id := r.opt.NewID()
	c := r.newComponent(id)

	r.mu.Lock()
	if _, exists := r.charts[id]; exists {
		r.mu.Unlock()
		return nil, cerr.Newf(cerr.ChartExists, "chart %q already exists", id)
	}
	r.charts[id] = c
	r.mu.Unlock()

	if err := c.MutateMany(ctx, muts); err != nil {
		r.remove(id)
		return nil, err
	}
	c.ForceUpdate(ctx)
	if !c.Mounted() {
		_ = c.Mount(ctx)
	}
	if r.opt.Persister != nil {
		r.opt.Persister.Enqueue(c.Snapshot())
	}
	r.log.Info(ctx, "charts.created", map[string]any{"chart_id": id})
	return c, nil
}

// Restore re-creates a chart from a persisted snapshot.
func (r *Registry) Restore(ctx context.Context, snap component.Snapshot) (*component.Component, error) {
	c := r.newComponent(snap.ID)
	if err := c.Restore(ctx, snap); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if _, exists := r.charts[snap.ID]; exists {
		r.mu.Unlock()
		c.Close(ctx)
		return nil, cerr.Newf(cerr.ChartExists, "chart %q already exists", snap.ID)
	}
	r.charts[snap.ID] = c
	r.mu.Unlock()
	_ = c.Mount(ctx)
	return c, nil
}

func (r *Registry) Get(id string) (*component.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.charts[id]
	if !ok {
		return nil, cerr.Newf(cerr.ChartNotFound, "chart %q not found", id)
	}
	return c, nil
}

// IDs returns the registered chart ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.charts))
	for id := range r.charts {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.charts)
}

// Delete closes the chart and removes its snapshot.
func (r *Registry) Delete(ctx context.Context, id string) error {
	c, err := r.Get(id)
	if err != nil {
		return err
	}
	r.remove(id)
	c.Close(ctx)
	if r.opt.Persister != nil {
		if err := r.opt.Persister.Delete(ctx, id); err != nil {
			return err
		}
	}
	r.log.Info(ctx, "charts.deleted", map[string]any{"chart_id": id})
	return nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.charts, id)
	r.mu.Unlock()
}

// Rebuild remounts id, used when a viewer attaches.
func (r *Registry) Rebuild(ctx context.Context, id string) {
	c, err := r.Get(id)
	if err != nil {
		return
	}
	if err := c.Mount(ctx); err != nil {
		r.log.Debug(ctx, "charts.rebuild_failed", map[string]any{"chart_id": id, "error": err.Error()})
	}
}

// Close closes every chart; snapshots stay persisted.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	all := r.charts
	r.charts = map[string]*component.Component{}
	r.mu.Unlock()
	for _, c := range all {
		c.Close(ctx)
	}
}
