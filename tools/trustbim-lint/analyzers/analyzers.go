// Package analyzers provides all custom static analyzers for trustbim.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers/compileloop"
	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers/errwrap"
	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers/zapmsg"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		compileloop.Analyzer,
		errwrap.Analyzer,
		zapmsg.Analyzer,
	}
}
