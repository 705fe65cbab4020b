package entities

// Provenance tells whether a property came from the source model or was inferred.
type Provenance string

// Provenance values.
const (
	ProvenanceSource   Provenance = "source"
	ProvenanceInferred Provenance = "inferred"
)

// Normalization notes recorded on a property.
const (
	NoteText       = "text"
	NoteParseError = "parse_error"
	NoteNoValue    = "no_value"
)

// Property is a named value on an entity. Raw holds what the source provided;
// Value and Unit are set by the unit normalizer.
type Property struct {
	Name       string     `json:"name"`
	Raw        any        `json:"raw,omitempty"`
	RawUnit    string     `json:"raw_unit,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Quantity   string     `json:"quantity,omitempty"`
	Text       string     `json:"text,omitempty"`
	Provenance Provenance `json:"provenance,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Normalized reports whether the property carries a value in its base unit.
func (p *Property) Normalized() bool {
	return p != nil && p.Value != nil
}

// Resolved reports whether the property counts as present for required-property
// checks: a normalized number or non-empty text.
func (p *Property) Resolved() bool {
	if p == nil {
		return false
	}
	return p.Value != nil || p.Text != ""
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
