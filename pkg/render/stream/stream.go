// Package stream is a rendering engine that emits chart operations as JSON
// messages. Writers get one message per line; the websocket hub in chartd
// fans the same messages out to browser viewers.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

type Op string

const (
	OpConstruct     Op = "construct"
	OpRender        Op = "render"
	OpUpdateSeries  Op = "updateSeries"
	OpUpdateOptions Op = "updateOptions"
	OpDestroy       Op = "destroy"
	OpError         Op = "error"
	OpLoading       Op = "loading"
)

// Message is one engine operation.
type Message struct {
	Op      Op               `json:"op"`
	Target  string           `json:"target"`
	Seq     uint64           `json:"seq"`
	Config  map[string]any   `json:"config,omitempty"`
	Series  *chart.SeriesSet `json:"series,omitempty"`
	Options map[string]any   `json:"options,omitempty"`
	Message string           `json:"message,omitempty"`
	Loading *bool            `json:"loading,omitempty"`
	At      time.Time        `json:"at"`
}

// Sink receives messages for a target.
type Sink interface {
	Send(ctx context.Context, m Message) error
	// Attached reports whether anything is still consuming target.
	Attached(target string) bool
}

// Engine turns instance calls into messages on Sink.
type Engine struct {
	Sink Sink
	Now  func() time.Time
}

var _ component.Engine = (*Engine)(nil)

func (e *Engine) Construct(ctx context.Context, target string, cfg map[string]any, series chart.SeriesSet) (component.Instance, error) {
	if e.Sink == nil {
		return nil, cerr.New(cerr.RenderMissing, "stream engine has no sink")
	}
	inst := &Instance{engine: e, target: target, cfg: config.Clone(cfg), series: series}
	if err := inst.send(ctx, Message{Op: OpConstruct, Config: inst.cfg, Series: &series}); err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

type Instance struct {
	engine *Engine
	target string

	mu        sync.Mutex
	seq       uint64
	cfg       map[string]any
	series    chart.SeriesSet
	destroyed bool
}

func (i *Instance) send(ctx context.Context, m Message) error {
	if i.destroyed {
		return cerr.New(cerr.RenderDetached, "chart instance was destroyed")
	}
	i.seq++
	m.Target = i.target
	m.Seq = i.seq
	m.At = i.engine.now()
	return i.engine.Sink.Send(ctx, m)
}

func (i *Instance) Render(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.send(ctx, Message{Op: OpRender})
}

func (i *Instance) UpdateSeries(ctx context.Context, series chart.SeriesSet) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.series = series
	return i.send(ctx, Message{Op: OpUpdateSeries, Series: &series})
}

func (i *Instance) UpdateOptions(ctx context.Context, partial map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg, _ = config.Merge(i.cfg, partial, config.MergeOptions{})
	return i.send(ctx, Message{Op: OpUpdateOptions, Options: partial})
}

func (i *Instance) Destroy(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return nil
	}
	err := i.send(ctx, Message{Op: OpDestroy})
	i.destroyed = true
	return err
}

func (i *Instance) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.destroyed && i.engine.Sink.Attached(i.target)
}

func (i *Instance) Data() chart.SeriesSet {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.series
}

// Config returns a copy of the instance's current configuration.
func (i *Instance) Config() map[string]any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return config.Clone(i.cfg)
}

// WriterSink writes JSON lines to W and is always attached.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(m)
}

func (s *WriterSink) Attached(string) bool { return true }

// Surface reports component errors and loading state for one target on a
// sink.
type Surface struct {
	Sink   Sink
	Target string
	Now    func() time.Time
}

var _ component.Surface = (*Surface)(nil)

func (s *Surface) emit(m Message) {
	m.Target = s.Target
	if s.Now != nil {
		m.At = s.Now().UTC()
	} else {
		m.At = time.Now().UTC()
	}
	_ = s.Sink.Send(context.Background(), m)
}

func (s *Surface) ShowError(msg string) { s.emit(Message{Op: OpError, Message: msg}) }

func (s *Surface) ClearError() { s.emit(Message{Op: OpError}) }

func (s *Surface) SetLoading(on bool) { s.emit(Message{Op: OpLoading, Loading: &on}) }
