package a

import (
	"regexp"

	"example.com/trustbim/internal/domain/predicate"
)

func badRegexp(names []string) {
	for _, name := range names {
		re := regexp.MustCompile(`(?i)pump`) // want "regexp.MustCompile called inside loop"
		_ = re.MatchString(name)
	}
}

func badPredicate(expr predicate.Expression, entities []map[string]any) {
	for _, fields := range entities {
		p, _ := predicate.Compile(expr) // want "predicate.Compile called inside loop"
		_ = p.Match(fields)
	}
}

func badForLoop(expr predicate.Expression, n int) {
	for i := 0; i < n; i++ {
		_ = predicate.MustCompile(expr) // want "predicate.MustCompile called inside loop"
	}
}

func goodEachRule(rules []predicate.Expression) []*predicate.Predicate {
	compiled := make([]*predicate.Predicate, 0, len(rules))
	for _, expr := range rules {
		compiled = append(compiled, predicate.MustCompile(expr))
	}
	return compiled
}

func goodEachPattern(patterns map[string]string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(patterns))
	for class, pattern := range patterns {
		out[class] = regexp.MustCompile(`(?i)` + pattern)
	}
	return out
}

func goodClosure(names []string) []func() bool {
	var fns []func() bool
	for _, name := range names {
		fns = append(fns, func() bool {
			return regexp.MustCompile(`\d+`).MatchString(name)
		})
	}
	return fns
}

var globalRe = regexp.MustCompile(`\d+`)

func goodGlobal(names []string) {
	for _, name := range names {
		_ = globalRe.MatchString(name)
	}
}
