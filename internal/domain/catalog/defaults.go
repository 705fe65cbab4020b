package catalog

import _ "embed"

// DefaultRules is the rule catalog written by `trustbim init`.
//
//go:embed default_rules.yaml
var DefaultRules []byte

// DefaultRulesFile is the file name DefaultRules is written under.
const DefaultRulesFile = "catalog.yaml"

// Default parses DefaultRules.
func Default() (*Catalog, error) {
	return Parse(DefaultRules)
}
