package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/predicate"
)

// Keyword override match targets.
const (
	MatchOnName = "name"
	MatchOnText = "text"
)

// Override reassigns the canonical class when its keywords or condition match.
type Override struct {
	ID            string
	SourceClasses []string
	Keywords      []string // lowercased
	MatchOn       string
	When          *predicate.Predicate
	Target        string
}

// Matches reports whether the override applies. name and text are the
// lowercased entity name and searchable text.
func (o *Override) Matches(sourceClass, name, text string, s predicate.Subject) (bool, error) {
	if len(o.SourceClasses) > 0 && !containsFold(o.SourceClasses, sourceClass) {
		return false, nil
	}

	if len(o.Keywords) > 0 {
		haystack := text
		if o.MatchOn == MatchOnName {
			haystack = name
		}
		if _, ok := FirstKeyword(haystack, o.Keywords); !ok {
			return false, nil
		}
	}

	if o.When != nil {
		return o.When.Evaluate(s)
	}
	return true, nil
}

// KeywordRule constrains the searchable text of entities of one class.
type KeywordRule struct {
	MustContainAny  []string // lowercased
	MustContainNone []string // lowercased
}

// Range bounds a numeric property. A nil bound is open.
type Range struct {
	Property string
	Min      *float64
	Max      *float64
}

// Check returns the violated bound when v lies strictly outside the range.
func (r Range) Check(v float64) (bound float64, violated bool) {
	if r.Min != nil && v < *r.Min {
		return *r.Min, true
	}
	if r.Max != nil && v > *r.Max {
		return *r.Max, true
	}
	return 0, false
}

// NeighborRule requires a minimum number of related entities of one kind.
// When Classes is set only neighbors resolved to one of those classes count.
type NeighborRule struct {
	Relation string
	Min      int
	Classes  []string
}

// Exception suppresses an incoherence violation when its predicate matches.
type Exception struct {
	ID          string
	Description string
	When        *predicate.Predicate
}

// IncoherenceRule flags an entity when its condition holds and no exception matches.
// A rule without Classes and Tiers applies to every entity.
type IncoherenceRule struct {
	ID          string
	Description string
	Hint        string
	Severity    entities.Severity
	Classes     []string
	Tiers       []entities.Tier
	Condition   *predicate.Predicate
	Exceptions  []Exception
}

// AppliesTo reports whether the rule is in scope for an entity.
func (r *IncoherenceRule) AppliesTo(class string, tier entities.Tier) bool {
	if len(r.Classes) == 0 && len(r.Tiers) == 0 {
		return true
	}
	for _, c := range r.Classes {
		if c == class {
			return true
		}
	}
	for _, t := range r.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// FirstKeyword returns the first keyword found as a whole word in the
// lowercased haystack.
func FirstKeyword(haystack string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if HasKeyword(haystack, kw) {
			return kw, true
		}
	}
	return "", false
}

// HasKeyword reports whether kw occurs in haystack as a whole word. A word
// ends at any rune that is not a letter or digit, and at a change between
// letters and digits, so "ipe" matches "ipe300" but not "pipe". A trailing
// plural "s" or "es" is accepted after a keyword that ends in a letter.
func HasKeyword(haystack, kw string) bool {
	if kw == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)

	for from := 0; from < len(haystack); {
		i := strings.Index(haystack[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(kw)

		if wordStart(haystack, start, first) && wordEnd(haystack, end, last) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		from = start + size
	}
	return false
}

func wordStart(s string, at int, first rune) bool {
	if at == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:at])
	return splits(prev, first)
}

func wordEnd(s string, at int, last rune) bool {
	if at == len(s) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[at:])
	if splits(last, next) {
		return true
	}
	if !unicode.IsLetter(last) {
		return false
	}
	for _, suffix := range []string{"s", "es"} {
		if rest, ok := strings.CutPrefix(s[at:], suffix); ok {
			after, _ := utf8.DecodeRuneInString(rest)
			if rest == "" || !unicode.IsLetter(after) {
				return true
			}
		}
	}
	return false
}

// splits reports whether a word boundary lies between the runes a and b.
func splits(a, b rune) bool {
	aWord := unicode.IsLetter(a) || unicode.IsDigit(a)
	bWord := unicode.IsLetter(b) || unicode.IsDigit(b)
	if !aWord || !bWord {
		return true
	}
	return unicode.IsLetter(a) != unicode.IsLetter(b)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
