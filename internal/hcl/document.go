package hcl

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/fsutil"
)

// FileExt is the extension of network files.
const FileExt = ".hcl"

// Document is the decoded content of one or more network files.
type Document struct {
	Modules     []*ModuleDef
	Connections []*ConnectDef
	Loops       []*LoopDef
}

// ModuleDef declares one module instance.
type ModuleDef struct {
	Label   string
	Type    string
	Version string
	// Params holds every parameter attribute, already evaluated.
	Params map[string]cty.Value
	Range  hcl.Range
}

// ParamNames returns the parameter names in sorted order.
func (m *ModuleDef) ParamNames() []string {
	names := make([]string, 0, len(m.Params))
	for name := range m.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint names a port on a labelled module, e.g. `source[0]`.
type Endpoint struct {
	Label string
	Index int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s[%d]", e.Label, e.Index)
}

// ConnectDef declares a connection from an output port to an input port.
type ConnectDef struct {
	From  Endpoint
	To    Endpoint
	Range hcl.Range
}

// LoopDef declares a loop pair by module label.
type LoopDef struct {
	Start string
	End   string
	Range hcl.Range
}

type fileRoot struct {
	Modules  []*moduleBlock  `hcl:"module,block"`
	Connects []*connectBlock `hcl:"connect,block"`
	Loops    []*loopBlock    `hcl:"loop,block"`
}

type moduleBlock struct {
	Label    string    `hcl:"name,label"`
	Type     string    `hcl:"type"`
	Version  *string   `hcl:"version,optional"`
	Remain   hcl.Body  `hcl:",remain"`
	DefRange hcl.Range `hcl:",def_range"`
}

type connectBlock struct {
	From     hcl.Expression `hcl:"from"`
	To       hcl.Expression `hcl:"to"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type loopBlock struct {
	Start    hcl.Expression `hcl:"start"`
	End      hcl.Expression `hcl:"end"`
	DefRange hcl.Range      `hcl:",def_range"`
}

// Parser decodes network files. Every Parse call reads its sources afresh,
// so a parser can be reused to reload edited files.
type Parser struct {
	evalCtx *hcl.EvalContext
}

// NewParser creates a parser. Parameter expressions may reference the given
// variables as `var.<name>` and call the functions listed in Functions.
func NewParser(vars map[string]cty.Value) *Parser {
	evalCtx := &hcl.EvalContext{Functions: Functions()}
	if len(vars) > 0 {
		evalCtx.Variables = map[string]cty.Value{"var": cty.ObjectVal(vars)}
	}
	return &Parser{evalCtx: evalCtx}
}

// ParseFiles decodes every network file found under paths. Directories are
// walked for files ending in FileExt. The result merges all files in path
// order; module labels must be unique across them.
func (p *Parser) ParseFiles(ctx context.Context, paths ...string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := fsutil.FindFiles(FileExt, paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", FileExt, paths)
	}
	logger.Debug("Discovered network files.", "count", len(files))

	doc := &Document{}
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read network file %s: %w", path, err)
		}
		if err := p.parseInto(ctx, doc, src, path); err != nil {
			return nil, err
		}
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	logger.Debug("Network files parsed.", "modules", len(doc.Modules), "connections", len(doc.Connections), "loops", len(doc.Loops))
	return doc, nil
}

// Parse decodes a single network file held in memory.
func (p *Parser) Parse(ctx context.Context, src []byte, filename string) (*Document, error) {
	doc := &Document{}
	if err := p.parseInto(ctx, doc, src, filename); err != nil {
		return nil, err
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Parser) parseInto(ctx context.Context, doc *Document, src []byte, filename string) error {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse network file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, p.evalCtx, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode network file %s: %w", filename, diags)
	}

	for _, b := range root.Modules {
		def, diags := p.decodeModule(b)
		if diags.HasErrors() {
			return fmt.Errorf("module %q: %w", b.Label, diags)
		}
		doc.Modules = append(doc.Modules, def)
	}
	for _, b := range root.Connects {
		from, diags := endpointForExpr(b.From)
		if diags.HasErrors() {
			return diags
		}
		to, diags := endpointForExpr(b.To)
		if diags.HasErrors() {
			return diags
		}
		doc.Connections = append(doc.Connections, &ConnectDef{From: from, To: to, Range: b.DefRange})
	}
	for _, b := range root.Loops {
		start, diags := labelForExpr(b.Start)
		if diags.HasErrors() {
			return diags
		}
		end, diags := labelForExpr(b.End)
		if diags.HasErrors() {
			return diags
		}
		doc.Loops = append(doc.Loops, &LoopDef{Start: start, End: end, Range: b.DefRange})
	}
	ctxlog.FromContext(ctx).Debug("Decoded network file.", "file", filename, "modules", len(root.Modules))
	return nil
}

func (p *Parser) decodeModule(b *moduleBlock) (*ModuleDef, hcl.Diagnostics) {
	def := &ModuleDef{Label: b.Label, Type: b.Type, Params: map[string]cty.Value{}, Range: b.DefRange}
	if b.Version != nil {
		def.Version = *b.Version
	}

	attrs, diags := b.Remain.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		v, valDiags := attr.Expr.Value(p.evalCtx)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		def.Params[name] = v
	}
	return def, diags
}

// check validates label references across the whole document.
func (d *Document) check() error {
	labels := make(map[string]hcl.Range, len(d.Modules))
	for _, m := range d.Modules {
		if prev, dup := labels[m.Label]; dup {
			return fmt.Errorf("%s: duplicate module label %q, first declared at %s", m.Range, m.Label, prev)
		}
		labels[m.Label] = m.Range
	}
	for _, c := range d.Connections {
		for _, e := range []Endpoint{c.From, c.To} {
			if _, ok := labels[e.Label]; !ok {
				return fmt.Errorf("%s: connection references undeclared module %q", c.Range, e.Label)
			}
		}
	}
	for _, l := range d.Loops {
		for _, label := range []string{l.Start, l.End} {
			if _, ok := labels[label]; !ok {
				return fmt.Errorf("%s: loop references undeclared module %q", l.Range, label)
			}
		}
	}
	return nil
}

// endpointForExpr reads a `label[index]` traversal.
func endpointForExpr(expr hcl.Expression) (Endpoint, hcl.Diagnostics) {
	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || len(traversal) != 2 {
		return Endpoint{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid port reference",
			Detail:   "A port reference must look like `label[index]`, e.g. `source[0]`.",
			Subject:  expr.Range().Ptr(),
		}}
	}
	idx, ok := traversal[1].(hcl.TraverseIndex)
	if !ok || idx.Key.Type() != cty.Number {
		return Endpoint{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid port index",
			Detail:   "The port index must be a whole number.",
			Subject:  traversal[1].SourceRange().Ptr(),
		}}
	}
	bf := idx.Key.AsBigFloat()
	n, acc := bf.Int64()
	if !bf.IsInt() || acc != 0 || n < 0 {
		return Endpoint{}, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid port index",
			Detail:   "The port index must be a non-negative whole number.",
			Subject:  traversal[1].SourceRange().Ptr(),
		}}
	}
	return Endpoint{Label: traversal.RootName(), Index: int(n)}, nil
}

// labelForExpr reads a bare module label.
func labelForExpr(expr hcl.Expression) (string, hcl.Diagnostics) {
	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || len(traversal) != 1 {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid module reference",
			Detail:   "Expected a bare module label such as `counter`.",
			Subject:  expr.Range().Ptr(),
		}}
	}
	return traversal.RootName(), nil
}
