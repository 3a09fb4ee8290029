package moduleid

import (
	"fmt"
	"strconv"
)

// New builds a module identifier from a descriptor name and instance number.
func New(name string, instance int) ID {
	return ID(name + ":" + strconv.Itoa(instance))
}

// String serializes the port reference, e.g. `Send:0[1]`.
func (p PortRef) String() string {
	return fmt.Sprintf("%s[%d]", p.Module, p.Index)
}

// String serializes the connection identifier, e.g. `Send:0[0]->Report:0[0]`.
func (c ConnectionID) String() string {
	return c.From.String() + "->" + c.To.String()
}
