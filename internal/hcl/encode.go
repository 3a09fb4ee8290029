package hcl

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
)

// LabelFor derives a network file label from a module id: `Send:0`
// becomes `Send_0`.
func LabelFor(id moduleid.ID) string {
	return strings.ReplaceAll(string(id), ":", "_")
}

// Encode renders the current network as a network file. Transient
// parameters are not written. Parsing and building the result yields a
// network with the same modules, parameters, connections and loop pairs.
func Encode(ctx context.Context, net *network.Network) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	for _, inst := range net.Modules(ctx) {
		block := root.AppendNewBlock("module", []string{LabelFor(inst.ID)})
		body := block.Body()
		body.SetAttributeValue("type", cty.StringVal(inst.Descriptor.Name))
		body.SetAttributeValue("version", cty.StringVal(inst.Descriptor.Version))
		values := inst.State.Snapshot()
		for _, name := range inst.State.Names() {
			if inst.State.IsTransient(name) {
				continue
			}
			body.SetAttributeValue(name, values[name])
		}
		root.AppendNewline()
	}

	conns := net.Connections(ctx)
	// Dynamic input groups only grow one port at a time.
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].To.Index < conns[j].To.Index })
	for _, c := range conns {
		body := root.AppendNewBlock("connect", nil).Body()
		body.SetAttributeRaw("from", portTokens(c.From))
		body.SetAttributeRaw("to", portTokens(c.To))
		root.AppendNewline()
	}

	for _, p := range net.LoopPairs(ctx) {
		body := root.AppendNewBlock("loop", nil).Body()
		body.SetAttributeTraversal("start", hcl.Traversal{hcl.TraverseRoot{Name: LabelFor(p.Start)}})
		body.SetAttributeTraversal("end", hcl.Traversal{hcl.TraverseRoot{Name: LabelFor(p.End)}})
		root.AppendNewline()
	}

	return f.Bytes()
}

func portTokens(p moduleid.PortRef) hclwrite.Tokens {
	return hclwrite.TokensForTraversal(hcl.Traversal{
		hcl.TraverseRoot{Name: LabelFor(p.Module)},
		hcl.TraverseIndex{Key: cty.NumberIntVal(int64(p.Index))},
	})
}
