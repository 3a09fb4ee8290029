package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/hcl"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
)

// ErrNoNetwork is returned by operations that need a network file when none
// was configured.
var ErrNoNetwork = errors.New("no network path configured")

// Load parses the configured network files and builds them into the app's
// network. It must be called once, before the first run.
func (a *App) Load(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading network...", "path", a.config.NetworkPath)

	doc, err := a.parse(ctx)
	if err != nil {
		return err
	}

	var labels hcl.Labels
	m := a.session.Mutate(ctx, func(ctx context.Context, net *network.Network) error {
		var err error
		labels, err = hcl.Build(ctx, net, doc)
		return err
	})
	if err := m.Wait(ctx); err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	a.labels = labels
	logger.Info("Network loaded successfully.", "modules", len(doc.Modules), "connections", len(doc.Connections), "loops", len(doc.Loops))
	return nil
}

// Reload re-reads the network files and applies parameter changes to the
// already built network. It returns the modules whose parameters changed.
// Topology changes in the files are ignored until the next start.
func (a *App) Reload(ctx context.Context) ([]moduleid.ID, error) {
	ctx = a.withLogger(ctx)
	doc, err := a.parse(ctx)
	if err != nil {
		return nil, err
	}

	var changed []moduleid.ID
	m := a.session.Mutate(ctx, func(ctx context.Context, net *network.Network) error {
		var err error
		changed, err = hcl.ApplyParameters(ctx, net, doc, a.labels)
		return err
	})
	if err := m.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply parameters: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Network reloaded.", "changed", len(changed), "deferred", m.Deferred())
	return changed, nil
}

func (a *App) parse(ctx context.Context) (*hcl.Document, error) {
	if a.config.NetworkPath == "" {
		return nil, ErrNoNetwork
	}
	vars := make(map[string]cty.Value, len(a.config.Variables))
	for k, v := range a.config.Variables {
		vars[k] = cty.StringVal(v)
	}
	doc, err := hcl.NewParser(vars).ParseFiles(ctx, a.config.NetworkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}
	return doc, nil
}

// Resolve turns a network file label or a module id into a module id known
// to the network.
func (a *App) Resolve(ctx context.Context, ref string) (moduleid.ID, error) {
	if id, ok := a.labels.Lookup(ref); ok {
		return id, nil
	}
	id, err := moduleid.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("unknown module %q: %w", ref, err)
	}
	if _, ok := a.net.Module(ctx, id); !ok {
		return "", fmt.Errorf("unknown module %q: %w", ref, network.ErrNotFound)
	}
	return id, nil
}
