package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// Request builds a run request from labels or module ids.
func (a *App) Request(ctx context.Context, targets, dirty []string) (scheduler.Request, error) {
	var req scheduler.Request
	for _, ref := range targets {
		id, err := a.Resolve(ctx, ref)
		if err != nil {
			return req, err
		}
		req.Targets = append(req.Targets, id)
	}
	for _, ref := range dirty {
		id, err := a.Resolve(ctx, ref)
		if err != nil {
			return req, err
		}
		req.Dirty = append(req.Dirty, id)
	}
	return req, nil
}

// Run executes one run of the loaded network and waits for it. The report
// is returned even when the run was aborted or cancelled; modules failing
// on their own do not make Run return an error.
func (a *App) Run(ctx context.Context, req scheduler.Request) (history.Report, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	if len(a.net.Modules(ctx)) == 0 {
		logger.Warn("No modules found in network, execution not required.")
		return history.Report{}, nil
	}

	run, err := a.session.Execute(ctx, req)
	if err != nil {
		return history.Report{}, fmt.Errorf("failed to start run: %w", err)
	}
	ec, err := run.Wait(ctx)
	if ec == nil {
		return history.Report{}, err
	}

	report, aerr := a.archive.Get(ctx, ec.RunID)
	if aerr != nil {
		if !errors.Is(aerr, history.ErrNotFound) {
			logger.Warn("Could not read run report from archive.", "error", aerr)
		}
		report = history.NewReport(ec, time.Now())
	}
	logger.Debug("App.Run method finished.", "outcome", report.Outcome)
	if err != nil {
		return report, fmt.Errorf("execution failed: %w", err)
	}
	return report, nil
}

// RunTargets runs the network for the given labels or module ids. No
// targets means the whole network.
func (a *App) RunTargets(ctx context.Context, targets ...string) (history.Report, error) {
	req, err := a.Request(ctx, targets, nil)
	if err != nil {
		return history.Report{}, err
	}
	return a.Run(ctx, req)
}

// Order returns the execution order of the whole network.
func (a *App) Order(ctx context.Context) ([]moduleid.ID, error) {
	ctx = a.withLogger(ctx)
	plan, err := scheduler.New(a.net).Plan(ctx, scheduler.Request{})
	if err != nil {
		return nil, err
	}
	return plan.Order(), nil
}
