package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
)

// ValidateRegistry builds one instance of every registered module type and
// checks its declared ports and parameters for consistency.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, e := range r.Entries() {
		name := e.Descriptor.String()
		impl := e.New()
		if impl == nil {
			errs = append(errs, fmt.Sprintf("module '%s': constructor returned nil", name))
			continue
		}

		ports := impl.Ports()
		for i, in := range ports.Inputs {
			if in.Dynamic && i != len(ports.Inputs)-1 {
				errs = append(errs, fmt.Sprintf("module '%s': dynamic input '%s' must be the last input", name, in.Name))
			}
			if in.Type == "" {
				errs = append(errs, fmt.Sprintf("module '%s': input '%s' has no type tag", name, in.Name))
			}
			if in.Type == porttype.Any {
				logger.Debug("Module accepts any datum type on input.", "module", name, "input", in.Name)
			}
		}
		for _, out := range ports.Outputs {
			if out.Dynamic {
				errs = append(errs, fmt.Sprintf("module '%s': output '%s' cannot be dynamic", name, out.Name))
			}
			if out.Type == "" || out.Type == porttype.Any {
				errs = append(errs, fmt.Sprintf("module '%s': output '%s' must declare a concrete type tag", name, out.Name))
			}
		}

		seen := make(map[string]struct{})
		for _, p := range impl.Parameters() {
			if _, dup := seen[p.Name]; dup {
				errs = append(errs, fmt.Sprintf("module '%s': parameter '%s' declared twice", name, p.Name))
			}
			seen[p.Name] = struct{}{}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
