package moduleid

// ID is the stable unique identifier of a module within a network.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// PortRef addresses a single port on a module. Whether it names an input or
// an output port depends on where it is used.
type PortRef struct {
	Module ID
	Index  int
}

// ConnectionID uniquely identifies a connection by its two endpoints.
type ConnectionID struct {
	From PortRef
	To   PortRef
}
