package entities

// Outcome of class resolution.
type Outcome string

// Outcome values.
const (
	OutcomeMapped    Outcome = "mapped"
	OutcomeUnmapped  Outcome = "unmapped"
	OutcomeAmbiguous Outcome = "ambiguous"
)

// EvaluationOutcome is the audit result of one incoherence rule on one entity.
type EvaluationOutcome string

// EvaluationOutcome values.
const (
	EvaluationPassed     EvaluationOutcome = "passed"
	EvaluationViolated   EvaluationOutcome = "violated"
	EvaluationSuppressed EvaluationOutcome = "suppressed"
	EvaluationError      EvaluationOutcome = "error"
)

// RuleEvaluation records that an incoherence rule was evaluated and what happened.
// Rules that did not apply to the entity have no RuleEvaluation at all.
type RuleEvaluation struct {
	EntityID    string            `json:"entity_id"`
	RuleID      string            `json:"rule_id"`
	Outcome     EvaluationOutcome `json:"outcome"`
	ExceptionID string            `json:"exception_id,omitempty"`
	Detail      string            `json:"detail,omitempty"`
}

// ValidationRecord is the final verdict for one entity.
type ValidationRecord struct {
	EntityID       string           `json:"entity_id"`
	CanonicalClass string           `json:"canonical_class,omitempty"`
	Tier           Tier             `json:"tier,omitempty"`
	Outcome        Outcome          `json:"outcome"`
	ClassSource    ClassSource      `json:"class_source,omitempty"`
	Confidence     *float64         `json:"confidence,omitempty"`
	Flags          []Flag           `json:"flags"`
	RequiresReview bool             `json:"requires_review"`
	ReviewReasons  []string         `json:"review_reasons,omitempty"`
	Evaluations    []RuleEvaluation `json:"evaluations,omitempty"`
}

// CountFlags returns how many flags of the given kind the record carries.
func (r *ValidationRecord) CountFlags(kind FlagKind) int {
	n := 0
	for i := range r.Flags {
		if r.Flags[i].Kind == kind {
			n++
		}
	}
	return n
}

// HasFlag reports whether the record carries a flag of the given kind.
func (r *ValidationRecord) HasFlag(kind FlagKind) bool {
	return r.CountFlags(kind) > 0
}

// Evaluation returns the audit entry for a rule id.
func (r *ValidationRecord) Evaluation(ruleID string) (RuleEvaluation, bool) {
	for _, ev := range r.Evaluations {
		if ev.RuleID == ruleID {
			return ev, true
		}
	}
	return RuleEvaluation{}, false
}
