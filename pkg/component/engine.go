package component

import (
	"context"
	"fmt"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
)

// Engine constructs rendered chart instances for a target.
type Engine interface {
	Construct(ctx context.Context, target string, cfg map[string]any, series chart.SeriesSet) (Instance, error)
}

// Instance is one rendered chart owned by a component.
type Instance interface {
	Render(ctx context.Context) error
	UpdateSeries(ctx context.Context, series chart.SeriesSet) error
	UpdateOptions(ctx context.Context, partial map[string]any) error
	Destroy(ctx context.Context) error
	// Attached reports whether the output target is still valid.
	Attached() bool
	// Data returns the series currently rendered.
	Data() chart.SeriesSet
}

// Surface displays component state outside the chart itself.
type Surface interface {
	ShowError(msg string)
	ClearError()
	SetLoading(on bool)
}

type nopSurface struct{}

func (nopSurface) ShowError(string) {}
func (nopSurface) ClearError()      {}
func (nopSurface) SetLoading(bool)  {}

// call runs fn and converts a panic into an error.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}
