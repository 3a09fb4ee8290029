package hcl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/dataflowgo/internal/hcl"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func newNetwork() *network.Network {
	reg := registry.New(
		testutil.NewScript("Send", nil).
			WithOutputs(porttype.Scalar).
			WithParams(module.ParameterSpec{Name: "value", Default: cty.NumberIntVal(0)}),
		testutil.NewScript("Negate", nil).
			WithInputs(porttype.Scalar).
			WithOutputs(porttype.Scalar),
		testutil.NewScript("Join", nil).
			WithDynamicInputs(porttype.Scalar).
			WithOutputs(porttype.Scalar).
			WithParams(module.ParameterSpec{Name: "labels", Default: cty.NullVal(cty.DynamicPseudoType)}),
	)
	return network.New(reg)
}

const pipeline = `
module "src" {
  type  = "Send"
  value = "5"
}

module "neg" {
  type    = "Negate"
  version = "1.0"
}

connect {
  from = src[0]
  to   = neg[0]
}
`

func TestBuildPipeline(t *testing.T) {
	ctx, _ := testutil.Context(t)
	net := newNetwork()

	doc, err := hcl.NewParser(nil).Parse(ctx, []byte(pipeline), "pipeline.hcl")
	require.NoError(t, err)
	require.Len(t, doc.Modules, 2)
	require.Len(t, doc.Connections, 1)
	assert.Equal(t, hcl.Endpoint{Label: "src", Index: 0}, doc.Connections[0].From)

	labels, err := hcl.Build(ctx, net, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "src"}, labels.Sorted())

	src, _ := labels.Lookup("src")
	assert.Equal(t, "Send:0", src.String())
	assert.Equal(t, []string{"Send:0[0]->Negate:0[0]"}, net.Snapshot(ctx).Connections)

	v, err := net.Parameter(ctx, src, "value")
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(5)), "string literal converted to the declared number type, got %#v", v)
}

func TestVariablesAndFunctions(t *testing.T) {
	ctx, _ := testutil.Context(t)
	net := newNetwork()

	src := `
module "src" {
  type  = "Send"
  value = max(var.base, 2) * 2
}
module "join" {
  type   = "Join"
  labels = [for i in range(2) : format("in%d", i)]
}
`
	parser := hcl.NewParser(map[string]cty.Value{"base": cty.NumberIntVal(7)})
	doc, err := parser.Parse(ctx, []byte(src), "vars.hcl")
	require.NoError(t, err)
	labels, err := hcl.Build(ctx, net, doc)
	require.NoError(t, err)

	v, err := net.Parameter(ctx, labels["src"], "value")
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(14)))

	l, err := net.Parameter(ctx, labels["join"], "labels")
	require.NoError(t, err)
	assert.Equal(t, 2, l.LengthInt(), "dynamic default accepts any value")
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "string port reference",
			src: `module "a" { type = "Send" }
connect {
  from = "a[0]"
  to   = a[0]
}`,
			want: "Invalid port reference",
		},
		{
			name: "negative port index",
			src: `module "a" { type = "Send" }
connect {
  from = a[-1]
  to   = a[0]
}`,
			want: "Invalid port",
		},
		{
			name: "undeclared label",
			src: `module "a" { type = "Send" }
connect {
  from = a[0]
  to   = b[0]
}`,
			want: `undeclared module "b"`,
		},
		{
			name: "duplicate label",
			src: `module "a" { type = "Send" }
module "a" { type = "Negate" }`,
			want: `duplicate module label "a"`,
		},
		{
			name: "loop with expression",
			src: `module "a" { type = "Send" }
loop {
  start = a[0]
  end   = a
}`,
			want: "Invalid module reference",
		},
		{
			name: "missing type",
			src:  `module "a" { value = 1 }`,
			want: "type",
		},
		{
			name: "nested block in module",
			src: `module "a" {
  type = "Send"
  extra {}
}`,
			want: "module \"a\"",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			_, err := hcl.NewParser(nil).Parse(ctx, []byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		is   error
	}{
		{
			name: "unknown module type",
			src:  `module "a" { type = "Nope" }`,
			is:   network.ErrUnknownModuleType,
		},
		{
			name: "unknown parameter",
			src: `module "a" {
  type  = "Send"
  color = "red"
}`,
			is: hcl.ErrUnknownParameter,
		},
		{
			name: "invalid port",
			src: `module "a" { type = "Send" }
module "b" { type = "Negate" }
connect {
  from = a[3]
  to   = b[0]
}`,
			is: network.ErrInvalidPort,
		},
		{
			name: "cycle",
			src: `module "a" { type = "Negate" }
module "b" { type = "Negate" }
connect {
  from = a[0]
  to   = b[0]
}
connect {
  from = b[0]
  to   = a[0]
}`,
			is: network.ErrWouldCreateCycle,
		},
		{
			name: "loop pair of plain modules",
			src: `module "a" { type = "Send" }
module "b" { type = "Negate" }
loop {
  start = a
  end   = b
}`,
			is: network.ErrLoopPair,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			doc, err := hcl.NewParser(nil).Parse(ctx, []byte(tc.src), "bad.hcl")
			require.NoError(t, err)
			_, err = hcl.Build(ctx, newNetwork(), doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestParameterConversionFailure(t *testing.T) {
	ctx, _ := testutil.Context(t)
	doc, err := hcl.NewParser(nil).Parse(ctx, []byte(`module "a" {
  type  = "Send"
  value = "five"
}`), "bad.hcl")
	require.NoError(t, err)

	_, err = hcl.Build(ctx, newNetwork(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot convert string to required type number")
}

func TestEncodeRoundTrip(t *testing.T) {
	ctx, _ := testutil.Context(t)
	first := newNetwork()
	doc, err := hcl.NewParser(nil).Parse(ctx, []byte(pipeline+`
module "join" {
  type = "Join"
}
connect {
  from = src[0]
  to   = join[0]
}
connect {
  from = neg[0]
  to   = join[1]
}
`), "pipeline.hcl")
	require.NoError(t, err)
	_, err = hcl.Build(ctx, first, doc)
	require.NoError(t, err)

	out := hcl.Encode(ctx, first)
	assert.Contains(t, string(out), `module "Send_0"`)
	assert.Contains(t, string(out), "from = Send_0[0]")

	again, err := hcl.NewParser(nil).Parse(ctx, out, "encoded.hcl")
	require.NoError(t, err)
	second := newNetwork()
	_, err = hcl.Build(ctx, second, again)
	require.NoError(t, err)

	a, b := first.Snapshot(ctx), second.Snapshot(ctx)
	assert.Equal(t, a.Connections, b.Connections)
	require.Len(t, b.Modules, len(a.Modules))
	for i := range a.Modules {
		assert.Equal(t, a.Modules[i].ID, b.Modules[i].ID)
		assert.Equal(t, a.Modules[i].Parameters, b.Modules[i].Parameters)
	}
}

func TestApplyParameters(t *testing.T) {
	ctx, _ := testutil.Context(t)
	net := newNetwork()
	parser := hcl.NewParser(nil)

	doc, err := parser.Parse(ctx, []byte(pipeline), "pipeline.hcl")
	require.NoError(t, err)
	labels, err := hcl.Build(ctx, net, doc)
	require.NoError(t, err)

	changed, err := hcl.ApplyParameters(ctx, net, doc, labels)
	require.NoError(t, err)
	assert.Empty(t, changed, "re-applying identical values changes nothing")

	edited, err := parser.Parse(ctx, []byte(`
module "src" {
  type  = "Send"
  value = 6
}
module "extra" {
  type = "Negate"
}
`), "pipeline.hcl")
	require.NoError(t, err)
	changed, err = hcl.ApplyParameters(ctx, net, edited, labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Send:0"}, idStrings(changed))
	assert.Len(t, net.Modules(ctx), 2, "new modules in the file are not added")
}

func TestParseFiles(t *testing.T) {
	ctx, _ := testutil.Context(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`module "src" { type = "Send" }`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.hcl"), []byte(`
module "neg" { type = "Negate" }
connect {
  from = src[0]
  to   = neg[0]
}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	doc, err := hcl.NewParser(nil).ParseFiles(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, doc.Modules, 2)
	assert.Len(t, doc.Connections, 1)

	_, err = hcl.NewParser(nil).ParseFiles(ctx, t.TempDir())
	assert.Error(t, err, "a directory without network files")

	_, err = hcl.NewParser(nil).ParseFiles(ctx, filepath.Join(dir, "missing.hcl"))
	assert.Error(t, err)
}

func idStrings[T interface{ String() string }](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
