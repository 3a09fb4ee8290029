package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/feedback"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// Serve keeps the loaded network alive: it runs it once, then serves the
// control API, watches the network files, re-runs on the schedule and
// bridges feedback from the render host, each only when configured. It
// returns when ctx ends or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)

	if a.config.ControlAddr != "" {
		g.Go(func() error { return a.serveControl(gctx) })
	}

	if a.config.Watch {
		w, err := a.NewWatcher()
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	if a.config.Schedule != "" {
		c, err := a.newSchedule(gctx)
		if err != nil {
			return err
		}
		c.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-c.Stop().Done()
			logger.Debug("Schedule stopped.")
			return nil
		})
	}

	if a.config.RenderHost != "" {
		bridge, err := a.startBridge(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			bridge.Close()
			return nil
		})
	}

	logger.Info("🚀 Serving network.",
		"control", a.config.ControlAddr,
		"watch", a.config.Watch,
		"schedule", a.config.Schedule,
		"render_host", a.config.RenderHost,
	)
	if _, err := a.session.Execute(gctx, scheduler.Request{}); err != nil {
		return fmt.Errorf("failed to start initial run: %w", err)
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()
	logger.Info("🏁 Serving stopped.")
	return err
}

// startBridge connects to the render host, forwards its feedback into the
// session and relays every bus event back to it.
func (a *App) startBridge(ctx context.Context) (*feedback.Bridge, error) {
	client, err := feedback.Dial(ctx, feedback.Config{
		URL:                a.config.RenderHost,
		InsecureSkipVerify: a.config.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to render host: %w", err)
	}
	bridge := feedback.NewBridge(client, a.session)
	bridge.Start(ctx)

	err = a.bus.Subscribe(ctx, func(ctx context.Context, e notify.Event) error {
		bridge.Notify(ctx, e)
		return nil
	})
	if err != nil {
		bridge.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	return bridge, nil
}

// newSchedule re-runs the network on the configured cron expression. Every
// source module is forced, so the whole network sees fresh data. A tick
// that fires while the previous scheduled run is still going is skipped.
func (a *App) newSchedule(ctx context.Context) (*cron.Cron, error) {
	logger := ctxlog.FromContext(ctx).With("component", "schedule")
	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := c.AddFunc(a.config.Schedule, func() {
		report, err := a.Run(ctx, scheduler.Request{Dirty: a.sources(ctx)})
		if err != nil {
			logger.Error("Scheduled run failed.", "error", err)
			return
		}
		logger.Info("Scheduled run finished.", "run_id", report.RunID, "outcome", report.Outcome)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", a.config.Schedule, err)
	}
	return c, nil
}

// sources lists modules with no incoming connections.
func (a *App) sources(ctx context.Context) []moduleid.ID {
	var out []moduleid.ID
	for _, inst := range a.net.Modules(ctx) {
		if len(a.net.Incoming(ctx, inst.ID)) == 0 {
			out = append(out, inst.ID)
		}
	}
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
