package module

import "fmt"

// Status is the execution status of a module instance.
type Status int32

const (
	NeverExecuted Status = iota
	NeedsExecute
	Executing
	Executed
	Error
)

var statusNames = [...]string{"NeverExecuted", "NeedsExecute", "Executing", "Executed", "Error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int32(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown module status %q", string(b))
}

// Pending reports whether a module in this status must run before its
// outputs can be trusted.
func (s Status) Pending() bool {
	return s != Executed
}
