package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/stream"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/scheduler"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

func newWatchCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream chart operations as JSON lines while the chart file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := &watcher{
				path:  chartPath,
				out:   cmd.OutOrStdout(),
				log:   logger(cmd),
				delay: delay,
			}
			return w.run(cmd.Context())
		},
	}
	addChartFlag(cmd)
	cmd.Flags().DurationVar(&delay, "delay", scheduler.DefaultDelay, "Quiescence window before changes are applied")
	return cmd
}

type watcher struct {
	path  string
	out   io.Writer
	log   *telemetry.Logger
	delay time.Duration
	clock scheduler.Clock

	comp  *component.Component
	attrs map[string]string
}

func (w *watcher) start(ctx context.Context) error {
	attrs, err := loadChartFile(w.path)
	if err != nil {
		return err
	}
	sink := stream.NewWriterSink(w.out)
	w.comp = component.New(component.Options{
		ID:      filepath.Base(w.path),
		Engine:  &stream.Engine{Sink: sink},
		Surface: &stream.Surface{Sink: sink, Target: filepath.Base(w.path)},
		Logger:  w.log,
		Clock:   w.clock,
		Delay:   w.delay,
	})
	w.attrs = map[string]string{}
	return w.apply(ctx, attrs)
}

// apply diffs attrs against the last loaded file and records the changes.
func (w *watcher) apply(ctx context.Context, attrs map[string]string) error {
	muts := diffAttributes(w.attrs, attrs)
	if len(muts) == 0 {
		return nil
	}
	if err := w.comp.MutateMany(ctx, muts); err != nil {
		return err
	}
	w.attrs = attrs
	w.log.Info(ctx, "watch.applied", map[string]any{"changes": len(muts)})
	return nil
}

func (w *watcher) reload(ctx context.Context) {
	attrs, err := loadChartFile(w.path)
	if err != nil {
		w.log.Warn(ctx, "watch.reload_failed", map[string]any{"error": err.Error()})
		return
	}
	if err := w.apply(ctx, attrs); err != nil {
		w.log.Warn(ctx, "watch.apply_failed", map[string]any{"error": err.Error()})
	}
}

func (w *watcher) run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating file watcher: %w", err)
	}
	defer fw.Close()

	// Editors often replace the file, so watch its directory.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed watching %s: %w", w.path, err)
	}
	if err := w.start(ctx); err != nil {
		return err
	}
	defer w.comp.Close(context.WithoutCancel(ctx))
	w.comp.ForceUpdate(ctx)
	if err := w.comp.LastError(); err != nil {
		w.log.Warn(ctx, "watch.build_failed", map[string]any{"error": err.Error()})
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.reload(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watch.error", map[string]any{"error": err.Error()})
		}
	}
}

// diffAttributes returns the mutations turning prev into next.
func diffAttributes(prev, next map[string]string) map[string]chart.Mutation {
	out := map[string]chart.Mutation{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			out[k] = chart.SetTo(v)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out[k] = chart.Removed()
		}
	}
	return out
}
