package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/hcl"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/localsession"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/internal/session"
	"github.com/specialistvlad/dataflowgo/internal/telemetry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	archive  history.Store
	promReg  *prometheus.Registry
	metrics  *telemetry.Metrics
	tracer   *sdktrace.TracerProvider
	bus      *notify.Bus
	net      *network.Network
	session  session.Session

	labels hcl.Labels
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger, registry, archive and an empty network driven by
// a local session. Call Load to read the network file.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	reg := registry.New(modules...)
	if err := reg.ValidateRegistry(ctx); err != nil {
		return nil, fmt.Errorf("registry validation failed: %w", err)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "types", len(reg.Entries()))

	archive, err := history.Open(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	logger.Debug("Run archive opened.", "backend", cfg.Archive.Backend)

	promReg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(promReg)
	tracer := telemetry.NewTracerProvider(logger)
	bus := notify.NewGoChannelBus(logger)

	net := network.New(reg, network.WithSink(notify.Multi{notify.Logger{}, bus}))
	sess := localsession.New(ctx, net,
		localsession.WithArchive(archive),
		localsession.WithMetrics(metrics),
	)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		archive:  archive,
		promReg:  promReg,
		metrics:  metrics,
		tracer:   tracer,
		bus:      bus,
		net:      net,
		session:  sess,
	}, nil
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Network returns the network the app drives.
func (a *App) Network() *network.Network { return a.net }

// Session returns the session runs are submitted to.
func (a *App) Session() session.Session { return a.session }

// Archive returns the run archive.
func (a *App) Archive() history.Store { return a.archive }

// Labels maps network file labels to module ids after Load.
func (a *App) Labels() hcl.Labels { return a.labels }

// Close stops the session and releases the archive, bus and tracer.
func (a *App) Close(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("Closing app.")
	errs := []error{a.session.Close(ctx)}
	errs = append(errs, a.bus.Close(), a.archive.Close(), a.tracer.Shutdown(ctx))
	return errors.Join(errs...)
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
