package entities

import (
	"fmt"
	"strings"
)

// Severity of a flag.
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity converts a string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityInfo:
		return SeverityInfo, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Rank orders severities: error > warning > info.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// FlagKind identifies what a flag reports.
type FlagKind string

// Flag kinds.
const (
	FlagUnmappedClass        FlagKind = "UNMAPPED_CLASS"
	FlagAmbiguousMapping     FlagKind = "AMBIGUOUS_MAPPING"
	FlagInconsistentKeyword  FlagKind = "INCONSISTENT_KEYWORD"
	FlagMissingRequired      FlagKind = "MISSING_REQUIRED_PROPERTY"
	FlagOutOfRange           FlagKind = "OUT_OF_RANGE"
	FlagInconsistentNeighbor FlagKind = "INCONSISTENT_NEIGHBOR"
	FlagParseError           FlagKind = "PARSE_ERROR"
	FlagUnitAssumed          FlagKind = "UNIT_ASSUMED"
	FlagEvaluationError      FlagKind = "EVALUATION_ERROR"
)

const incoherencePrefix = "INCOHERENCE:"

var flagKinds = []FlagKind{
	FlagUnmappedClass, FlagAmbiguousMapping, FlagInconsistentKeyword, FlagMissingRequired,
	FlagOutOfRange, FlagInconsistentNeighbor, FlagParseError, FlagUnitAssumed, FlagEvaluationError,
}

// ParseFlagKind validates a flag kind name. Incoherence kinds are accepted as
// INCOHERENCE:<rule id>.
func ParseFlagKind(s string) (FlagKind, error) {
	s = strings.TrimSpace(s)
	if id, ok := strings.CutPrefix(strings.ToUpper(s), incoherencePrefix); ok && id != "" {
		return IncoherenceKind(s[len(incoherencePrefix):]), nil
	}
	for _, k := range flagKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown flag kind %q", s)
}

// IncoherenceKind returns the flag kind for an incoherence rule.
func IncoherenceKind(ruleID string) FlagKind {
	return FlagKind(incoherencePrefix + ruleID)
}

// IsIncoherence reports whether k was produced by an incoherence rule.
func (k FlagKind) IsIncoherence() bool {
	return strings.HasPrefix(string(k), incoherencePrefix)
}

// Stage is the pipeline step that produced a flag.
type Stage string

// Stages in pipeline order.
const (
	StageCanonicalize Stage = "canonicalize"
	StageNormalize    Stage = "normalize"
	StageProperty     Stage = "property"
	StageRelationship Stage = "relationship"
	StageIncoherence  Stage = "incoherence"
)

// Stages lists every stage in the order flags are grouped.
var Stages = []Stage{StageCanonicalize, StageNormalize, StageProperty, StageRelationship, StageIncoherence}

// Flag is one finding on one entity.
type Flag struct {
	EntityID string   `json:"entity_id"`
	Kind     FlagKind `json:"kind"`
	Severity Severity `json:"severity"`
	Stage    Stage    `json:"stage"`
	RuleID   string   `json:"rule_id,omitempty"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint,omitempty"`
	Subject  string   `json:"subject,omitempty"` // property, relation kind or keyword the flag is about
	Observed *float64 `json:"observed,omitempty"`
	Limit    *float64 `json:"limit,omitempty"`
}
