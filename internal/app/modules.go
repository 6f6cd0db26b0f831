package app

import (
	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/modules/matlabplot"
	"github.com/certxg/knime-scripting/modules/matlabsnippet"
	"github.com/certxg/knime-scripting/modules/openinmatlab"
	"github.com/certxg/knime-scripting/modules/pythonsnippet"
	"github.com/certxg/knime-scripting/modules/rsnippet"
)

// coreModules is the definitive list of all modules that are compiled into
// the workbench binary.
var coreModules = []registry.Module{
	&openinmatlab.Module{},
	&matlabsnippet.Module{},
	&matlabplot.Module{},
	&pythonsnippet.Module{},
	&rsnippet.Module{},
}
