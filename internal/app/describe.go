package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/registry"
)

// PortDescription is the public view of a port spec.
type PortDescription struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Dynamic  bool   `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ParameterDescription is the public view of a parameter spec.
type ParameterDescription struct {
	Name      string `json:"name" yaml:"name"`
	Default   string `json:"default,omitempty" yaml:"default,omitempty"`
	Transient bool   `json:"transient,omitempty" yaml:"transient,omitempty"`
}

// ModuleDescription is the public view of a registered module type.
type ModuleDescription struct {
	module.Descriptor `yaml:",inline"`
	Inputs            []PortDescription      `json:"inputs" yaml:"inputs"`
	Outputs           []PortDescription      `json:"outputs" yaml:"outputs"`
	Parameters        []ParameterDescription `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Describe lists every registered module type in name order.
func Describe(reg *registry.Registry) []ModuleDescription {
	var out []ModuleDescription
	for _, e := range reg.Entries() {
		impl := e.New()
		ports := impl.Ports()
		d := ModuleDescription{
			Descriptor: e.Descriptor,
			Inputs:     describePorts(ports.Inputs),
			Outputs:    describePorts(ports.Outputs),
		}
		for _, p := range impl.Parameters() {
			d.Parameters = append(d.Parameters, ParameterDescription{
				Name:      p.Name,
				Default:   formatValue(p.Default),
				Transient: p.Transient,
			})
		}
		out = append(out, d)
	}
	return out
}

func describePorts(specs []module.PortSpec) []PortDescription {
	out := make([]PortDescription, 0, len(specs))
	for _, s := range specs {
		out = append(out, PortDescription{Name: s.Name, Type: string(s.Type), Dynamic: s.Dynamic, Optional: s.Optional})
	}
	return out
}

func formatValue(v cty.Value) string {
	if v.IsNull() || !v.IsWhollyKnown() {
		return ""
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// WriteModules renders module descriptions as an indented text listing.
func WriteModules(w io.Writer, ds []ModuleDescription) error {
	for _, d := range ds {
		fmt.Fprintf(w, "%s", d.Descriptor)
		if d.Category != "" {
			fmt.Fprintf(w, " [%s]", d.Category)
		}
		fmt.Fprintln(w)
		writePorts(w, "in ", d.Inputs)
		writePorts(w, "out", d.Outputs)
		for _, p := range d.Parameters {
			line := "  param " + p.Name
			if p.Default != "" {
				line += " = " + p.Default
			}
			if p.Transient {
				line += " (transient)"
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func writePorts(w io.Writer, dir string, ports []PortDescription) {
	for i, p := range ports {
		var flags []string
		if p.Dynamic {
			flags = append(flags, "dynamic")
		}
		if p.Optional {
			flags = append(flags, "optional")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintf(w, "  %s %d %s: %s%s\n", dir, i, p.Name, p.Type, suffix)
	}
}
