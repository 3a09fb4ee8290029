package registry

import (
	"context"
	"testing"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stub struct {
	ports  module.Ports
	params []module.ParameterSpec
}

func (s stub) Ports() module.Ports                { return s.ports }
func (s stub) Parameters() []module.ParameterSpec { return s.params }
func (stub) Execute(context.Context, *module.State, module.Inputs) (module.Outputs, error) {
	return nil, nil
}

type plugin struct{}

func (plugin) Register(r *Registry) {
	r.Register(module.Descriptor{Name: "Send", Version: "1.0"}, func() module.Module { return stub{} })
	r.Register(module.Descriptor{Name: "Send", Version: "2.0"}, func() module.Module { return stub{} })
}

func TestLookup(t *testing.T) {
	r := New(plugin{})

	e, err := r.Lookup("Send", "")
	require.NoError(t, err)
	assert.Equal(t, "2.0", e.Descriptor.Version, "empty version selects the latest registration")

	e, err = r.Lookup("Send", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", e.Descriptor.Version)

	_, err = r.Lookup("Send", "3.0")
	assert.ErrorIs(t, err, ErrUnknownModuleType)

	_, _, err = r.Create("Missing", "")
	assert.ErrorIs(t, err, ErrUnknownModuleType)

	assert.Len(t, r.Entries(), 2)
}

func TestRegisterPanics(t *testing.T) {
	r := New(plugin{})

	assert.Panics(t, func() {
		r.Register(module.Descriptor{Name: "Send", Version: "1.0"}, func() module.Module { return stub{} })
	}, "duplicate registration")

	assert.Panics(t, func() {
		r.Register(module.Descriptor{Name: "Bad:Name", Version: "1.0"}, func() module.Module { return stub{} })
	}, "descriptor names cannot contain identifier separators")

	assert.Panics(t, func() {
		r.Register(module.Descriptor{Name: "NoVersion"}, func() module.Module { return stub{} })
	})
}

func TestValidateRegistry(t *testing.T) {
	t.Run("valid modules pass", func(t *testing.T) {
		r := New(plugin{})
		assert.NoError(t, r.ValidateRegistry(context.Background()))
	})

	t.Run("inconsistent declarations are reported together", func(t *testing.T) {
		r := New()
		r.Register(module.Descriptor{Name: "Broken", Version: "1.0"}, func() module.Module {
			return stub{
				ports: module.Ports{
					Inputs: []module.PortSpec{
						{Name: "Many", Type: porttype.Matrix, Dynamic: true},
						{Name: "Last", Type: porttype.Matrix},
					},
					Outputs: []module.PortSpec{{Name: "Out", Type: porttype.Any}},
				},
				params: []module.ParameterSpec{{Name: "A"}, {Name: "A"}},
			}
		})

		err := r.ValidateRegistry(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dynamic input 'Many' must be the last input")
		assert.Contains(t, err.Error(), "output 'Out' must declare a concrete type tag")
		assert.Contains(t, err.Error(), "parameter 'A' declared twice")
	})
}
