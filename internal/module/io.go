package module

import "fmt"

// Inputs is the read-only view of the datums delivered to a module for one
// execution, indexed by input port.
type Inputs struct {
	values    []any
	iteration int
}

// NewInputs builds an Inputs value. A nil entry means the port carries no datum.
func NewInputs(values []any, iteration int) Inputs {
	return Inputs{values: values, iteration: iteration}
}

// Len returns the number of input ports, including empty ones.
func (in Inputs) Len() int { return len(in.values) }

// Get returns the datum on port i.
func (in Inputs) Get(i int) (any, bool) {
	if i < 0 || i >= len(in.values) || in.values[i] == nil {
		return nil, false
	}
	return in.values[i], true
}

// From returns every present datum starting at port i, in port order. It is
// used to read a dynamic port group.
func (in Inputs) From(i int) []any {
	var out []any
	for j := i; j < len(in.values); j++ {
		if in.values[j] != nil {
			out = append(out, in.values[j])
		}
	}
	return out
}

// Iteration is the loop iteration this execution belongs to, starting at 1,
// or 0 outside a loop body.
func (in Inputs) Iteration() int { return in.iteration }

// Outputs maps output port indices to the datums to publish. Published
// datums must not be mutated afterwards.
type Outputs map[int]any

// Input returns the datum on port i as T.
func Input[T any](in Inputs, i int) (T, error) {
	var zero T
	v, ok := in.Get(i)
	if !ok {
		return zero, fmt.Errorf("input %d: %w", i, ErrMissingInput)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("input %d: expected %T, got %T", i, zero, v)
	}
	return t, nil
}
