// trustbim-lint checks trustbim code for the conventions the pipeline relies on.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
