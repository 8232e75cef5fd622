package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/component"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/idempotency"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/render/stream"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/api"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/charts"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/hub"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/persist"
	"github.com/Ap3pp3rs94/chartly-apex/services/chartd/internal/settings"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := flag.String("config", os.Getenv("CHARTD_CONFIG_DIR"), "directory holding chartd.yaml")
	env := flag.String("env", os.Getenv("CHARTD_ENV"), "environment overlay under <config>/env/")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := telemetry.NewLogger(os.Stdout, telemetry.Options{Service: settings.Service})
	cfg, err := settings.Load(ctx, *root, *env, os.Environ, boot)
	if err != nil {
		boot.Error(ctx, "config.load_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	log := telemetry.NewLogger(os.Stdout, telemetry.Options{
		Service: settings.Service,
		Level:   telemetry.ParseLevel(cfg.Log.Level),
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "chartd.exit", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg settings.Settings, log *telemetry.Logger) error {
	store, err := persist.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, persist.Options{})
	if err != nil {
		return err
	}
	defer store.Close()

	counters := telemetry.NewCounters()
	saver := persist.NewSaver(store, log)

	var reg *charts.Registry
	h := hub.New(hub.Options{
		WriteTimeout: cfg.WS.WriteTimeout,
		Logger:       log,
		Counters:     counters,
		OnAttach:     func(ctx context.Context, id string) { reg.Rebuild(ctx, id) },
	})
	reg = charts.New(charts.Options{
		Engine:    &stream.Engine{Sink: h},
		Sink:      h,
		Persister: saver,
		Logger:    log,
		Delay:     cfg.UpdateDelay,
	})

	recs, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if _, err := reg.Restore(ctx, rec.Snapshot); err != nil {
			log.Warn(ctx, "chartd.restore_failed", map[string]any{"chart_id": rec.Snapshot.ID, "error": err.Error()})
		}
	}
	log.Info(ctx, "chartd.restored", map[string]any{"charts": reg.Len()})

	srvAPI := &api.Server{
		Registry:  reg,
		Hub:       h,
		Styles:    component.RegisterStyles(),
		Formatter: chart.NewFormatter(cfg.Location()),
		Counters:  counters,
		Logger:    log,
		Replays:   idempotency.NewCache(idempotency.DefaultTTL, nil),
		Checks: []telemetry.HealthCheck{{
			Name:     "database",
			Critical: true,
			Check: func(ctx context.Context) (map[string]string, error) {
				return map[string]string{"driver": cfg.Database.Driver}, store.Ping(ctx)
			},
		}},
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srvAPI.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return saver.Run(gctx) })
	g.Go(func() error {
		log.Info(gctx, "chartd.listening", map[string]any{"addr": cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		h.Close()
		err := srv.Shutdown(sctx)
		reg.Close(sctx)
		return err
	})
	return g.Wait()
}
