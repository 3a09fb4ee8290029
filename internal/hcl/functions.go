package hcl

import (
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Functions returns the functions available to parameter expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"abs":     stdlib.AbsoluteFunc,
		"ceil":    stdlib.CeilFunc,
		"concat":  stdlib.ConcatFunc,
		"floor":   stdlib.FloorFunc,
		"format":  stdlib.FormatFunc,
		"length":  stdlib.LengthFunc,
		"lower":   stdlib.LowerFunc,
		"max":     stdlib.MaxFunc,
		"min":     stdlib.MinFunc,
		"range":   stdlib.RangeFunc,
		"reverse": stdlib.ReverseListFunc,
		"upper":   stdlib.UpperFunc,
	}
}
