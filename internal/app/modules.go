package app

import (
	"io"

	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/modules/linalg"
	"github.com/specialistvlad/dataflowgo/modules/loop"
	"github.com/specialistvlad/dataflowgo/modules/print"
	"github.com/specialistvlad/dataflowgo/modules/report"
	"github.com/specialistvlad/dataflowgo/modules/testmatrix"
	"github.com/specialistvlad/dataflowgo/modules/widget"
)

// coreModules is the definitive list of all modules that are compiled into
// the dataflowgo binary. PrintDatum writes to out.
func coreModules(out io.Writer) []registry.Module {
	return []registry.Module{
		&print.Module{Out: out},
		&testmatrix.Module{},
		&linalg.Module{},
		&report.Module{},
		&loop.Module{},
		&widget.Module{},
	}
}
