package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Name is the descriptor name of the module.
const Name = "PrintDatum"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed datums. Nil means stdout.
	Out io.Writer
}

// PrintDatum writes whatever arrives on its single input.
type PrintDatum struct {
	out io.Writer
}

func (p *PrintDatum) Ports() module.Ports {
	return module.Ports{
		Inputs: []module.PortSpec{{Name: "Datum", Type: porttype.Any}},
	}
}

func (p *PrintDatum) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "label", Default: cty.StringVal("")},
	}
}

func (p *PrintDatum) Execute(ctx context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	datum, ok := in.Get(0)
	if !ok {
		return nil, fmt.Errorf("input 0: %w", module.ErrMissingInput)
	}
	label, _ := state.String("label")
	ctxlog.FromContext(ctx).Info("Printing datum.", "label", label, "type", fmt.Sprintf("%T", datum))

	if label != "" {
		fmt.Fprintf(p.out, "%s:\n", label)
	}
	switch v := datum.(type) {
	case map[string]string:
		// Sort keys for consistent output
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.out, "      %s = %q\n", k, v[k])
		}
	case fmt.Stringer:
		fmt.Fprintf(p.out, "%s\n", v)
	default:
		fmt.Fprintf(p.out, "%v\n", v)
	}
	return nil, nil
}

// Register registers the module type with the registry.
func (m *Module) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	r.Register(module.Descriptor{Name: Name, Version: "1.0", Category: "Basic"}, func() module.Module {
		return &PrintDatum{out: out}
	})
}
