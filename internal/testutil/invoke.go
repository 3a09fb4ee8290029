package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/module"
)

// Invocation runs a single module implementation outside any network.
type Invocation struct {
	Impl  module.Module
	State *module.State
}

// Invoke creates a parameter store for impl and applies params to it.
func Invoke(t *testing.T, impl module.Module, params map[string]cty.Value) *Invocation {
	t.Helper()
	state := module.NewState(impl.Parameters())
	for name, v := range params {
		state.Set(name, v)
	}
	return &Invocation{Impl: impl, State: state}
}

// Run executes the module once with the given input datums. A nil datum
// leaves its port empty.
func (inv *Invocation) Run(t *testing.T, inputs ...any) (module.Outputs, error) {
	t.Helper()
	ctx, _ := Context(t)
	return inv.Impl.Execute(ctx, inv.State, module.NewInputs(inputs, 0))
}

// MustRun is Run that fails the test on error.
func (inv *Invocation) MustRun(t *testing.T, inputs ...any) module.Outputs {
	t.Helper()
	out, err := inv.Run(t, inputs...)
	require.NoError(t, err)
	return out
}
