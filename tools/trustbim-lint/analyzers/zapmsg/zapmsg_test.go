package zapmsg_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/ersonp/trustbim/tools/trustbim-lint/analyzers/zapmsg"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, zapmsg.Analyzer, "a")
}
