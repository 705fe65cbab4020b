package compileloop_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers/compileloop"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, compileloop.Analyzer, "a")
}
