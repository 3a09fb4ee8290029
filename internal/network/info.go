package network

import (
	"context"
	"encoding/json"

	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// ModuleInfo is a read-only view of one module.
type ModuleInfo struct {
	ID         moduleid.ID       `json:"id" yaml:"id"`
	Descriptor module.Descriptor `json:"descriptor" yaml:"descriptor"`
	Status     module.Status     `json:"status" yaml:"status"`
	Inputs     int               `json:"inputs" yaml:"inputs"`
	Outputs    int               `json:"outputs" yaml:"outputs"`
	Parameters map[string]any    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// LoopInfo is a read-only view of a loop pair.
type LoopInfo struct {
	Start moduleid.ID `json:"start" yaml:"start"`
	End   moduleid.ID `json:"end" yaml:"end"`
}

// Info is a read-only view of a whole network.
type Info struct {
	Modules     []ModuleInfo `json:"modules" yaml:"modules"`
	Connections []string     `json:"connections" yaml:"connections"`
	Loops       []LoopInfo   `json:"loops,omitempty" yaml:"loops,omitempty"`
}

// Snapshot captures the current structure and state of the network.
// Transient parameters are left out.
func (n *Network) Snapshot(ctx context.Context) Info {
	n.mu.RLock()
	defer n.mu.RUnlock()

	info := Info{Modules: []ModuleInfo{}, Connections: []string{}}
	for _, inst := range n.topo.Modules(ctx) {
		st, _ := n.state.GetStatus(ctx, inst.ID)
		mi := ModuleInfo{
			ID:         inst.ID,
			Descriptor: inst.Descriptor,
			Status:     st,
			Inputs:     inst.InputCount(),
			Outputs:    inst.OutputCount(),
			Parameters: parameters(inst.State),
		}
		if err := n.state.GetError(ctx, inst.ID); err != nil {
			mi.Error = err.Error()
		}
		info.Modules = append(info.Modules, mi)
	}
	for _, c := range n.topo.Connections(ctx) {
		info.Connections = append(info.Connections, c.String())
	}
	for _, p := range n.topo.LoopPairs(ctx) {
		info.Loops = append(info.Loops, LoopInfo{Start: p.Start, End: p.End})
	}
	return info
}

func parameters(s *module.State) map[string]any {
	out := make(map[string]any)
	for name, v := range s.Snapshot() {
		if s.IsTransient(name) || !v.IsWhollyKnown() {
			continue
		}
		raw, err := json.Marshal(ctyjson.SimpleJSONValue{Value: v})
		if err != nil {
			continue
		}
		var decoded any
		if json.Unmarshal(raw, &decoded) == nil {
			out[name] = decoded
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
