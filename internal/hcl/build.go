package hcl

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
)

// ErrUnknownParameter is returned when a module block sets a parameter its
// module type does not declare.
var ErrUnknownParameter = errors.New("unknown parameter")

// Labels maps module labels from a network file to the ids the network
// assigned them.
type Labels map[string]moduleid.ID

// Lookup returns the id for a label.
func (l Labels) Lookup(label string) (moduleid.ID, bool) {
	id, ok := l[label]
	return id, ok
}

// Sorted returns the labels in sorted order.
func (l Labels) Sorted() []string {
	out := make([]string, 0, len(l))
	for label := range l {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Build adds every module, parameter, loop pair and connection of doc to
// net, each kind in declaration order. On error the network keeps whatever was added
// before the failing declaration.
func Build(ctx context.Context, net *network.Network, doc *Document) (Labels, error) {
	logger := ctxlog.FromContext(ctx)
	labels := make(Labels, len(doc.Modules))

	for _, m := range doc.Modules {
		id, err := net.AddModule(ctx, m.Type, m.Version)
		if err != nil {
			return labels, fmt.Errorf("%s: module %q: %w", m.Range, m.Label, err)
		}
		labels[m.Label] = id
		if _, err := applyParams(ctx, net, id, m); err != nil {
			return labels, fmt.Errorf("%s: module %q: %w", m.Range, m.Label, err)
		}
	}

	// Pairs come first so their back-edges are accepted by Connect.
	for _, l := range doc.Loops {
		if err := net.PairLoop(ctx, labels[l.Start], labels[l.End]); err != nil {
			return labels, fmt.Errorf("%s: loop %s..%s: %w", l.Range, l.Start, l.End, err)
		}
	}

	for _, c := range doc.Connections {
		src := moduleid.PortRef{Module: labels[c.From.Label], Index: c.From.Index}
		dst := moduleid.PortRef{Module: labels[c.To.Label], Index: c.To.Index}
		if _, err := net.Connect(ctx, src, dst); err != nil {
			return labels, fmt.Errorf("%s: connect %s to %s: %w", c.Range, c.From, c.To, err)
		}
	}

	logger.Info("Network built.", "modules", len(doc.Modules), "connections", len(doc.Connections), "loops", len(doc.Loops))
	return labels, nil
}

// ApplyParameters re-applies the parameter values of doc to modules that
// already exist in net. Topology differences are ignored. It returns the ids
// of modules whose parameters changed, which the network has already marked
// NeedsExecute together with everything downstream.
func ApplyParameters(ctx context.Context, net *network.Network, doc *Document, labels Labels) ([]moduleid.ID, error) {
	var changed []moduleid.ID
	for _, m := range doc.Modules {
		id, ok := labels[m.Label]
		if !ok {
			ctxlog.FromContext(ctx).Warn("Ignoring module added to the network file.", "label", m.Label)
			continue
		}
		dirty, err := applyParams(ctx, net, id, m)
		if err != nil {
			return changed, fmt.Errorf("%s: module %q: %w", m.Range, m.Label, err)
		}
		if dirty {
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func applyParams(ctx context.Context, net *network.Network, id moduleid.ID, m *ModuleDef) (bool, error) {
	dirty := false
	for _, name := range m.ParamNames() {
		changed, err := SetParameter(ctx, net, id, name, m.Params[name])
		if err != nil {
			return dirty, err
		}
		dirty = dirty || changed
	}
	return dirty, nil
}

// SetParameter checks name against the parameters the module declares,
// converts v to the declared type and stores it. It reports whether the
// module was marked for re-execution.
func SetParameter(ctx context.Context, net *network.Network, id moduleid.ID, name string, v cty.Value) (bool, error) {
	inst, ok := net.Module(ctx, id)
	if !ok {
		return false, fmt.Errorf("%w: %s", network.ErrNotFound, id)
	}
	for _, spec := range inst.Impl.Parameters() {
		if spec.Name != name {
			continue
		}
		cv, err := convertParam(spec, v)
		if err != nil {
			return false, fmt.Errorf("parameter %q: %w", name, err)
		}
		return net.SetParameter(ctx, id, name, cv)
	}
	return false, fmt.Errorf("%w %q for %s", ErrUnknownParameter, name, inst.Descriptor)
}

// convertParam converts v to the type of the declared default. Parameters
// with a null or dynamic default accept any value.
func convertParam(spec module.ParameterSpec, v cty.Value) (cty.Value, error) {
	if spec.Default.IsNull() || spec.Default.Type().Equals(cty.DynamicPseudoType) {
		return v, nil
	}
	want := spec.Default.Type()
	out, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot convert %s to required type %s: %w", v.Type().FriendlyName(), want.FriendlyName(), err)
	}
	return out, nil
}
