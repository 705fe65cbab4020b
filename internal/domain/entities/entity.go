// Package entities holds the building-model records that flow through the
// canonicalization and validation pipeline.
package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is a coarse grouping of canonical classes used to scope incoherence rules.
type Tier string

// Tier values.
const (
	TierStructural    Tier = "structural"
	TierMEP           Tier = "mep"
	TierArchitectural Tier = "architectural"
	TierOther         Tier = "other"
)

// ParseTier converts a string to a Tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierStructural, TierMEP, TierArchitectural, TierOther:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// ClassSource records which path produced the canonical class.
type ClassSource string

// ClassSource values.
const (
	ClassSourceRule   ClassSource = "rule"
	ClassSourceAssist ClassSource = "assist"
)

// Entity is one building element extracted upstream from the exchange format.
// Only the unit normalizer and the canonicalizer write to it; validators read.
type Entity struct {
	ID          string               `json:"id"`
	Source      string               `json:"source,omitempty"` // run or model id, scopes the stable asset id
	SourceClass string               `json:"source_class"`
	Name        string               `json:"name"`
	LongName    string               `json:"long_name,omitempty"`
	GlobalID    string               `json:"global_id,omitempty"`
	Attributes  map[string]string    `json:"attributes,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Relations   map[string][]string  `json:"relations,omitempty"`
	Neighbors   []Neighbor           `json:"neighbors,omitempty"`
	Signals     map[string]any       `json:"signals,omitempty"`
	SpatialPath []string             `json:"spatial_path,omitempty"`
	References  []Reference          `json:"references,omitempty"`
	Label       string               `json:"label,omitempty"` // ground-truth class, passed through untouched
	Line        int                  `json:"-"`

	Tier           Tier        `json:"tier,omitempty"`
	CanonicalClass string      `json:"canonical_class,omitempty"`
	Confidence     *float64    `json:"confidence,omitempty"`
	ClassSource    ClassSource `json:"class_source,omitempty"`
	Proposal       *Proposal   `json:"proposal,omitempty"`
}

// Neighbor is an adjacency hint carried on the upstream record.
type Neighbor struct {
	Relation  string `json:"rel"`
	Direction string `json:"direction,omitempty"`
	Class     string `json:"class,omitempty"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"uid"`
}

// Proposal is a class guess from the canonicalization-assist collaborator.
type Proposal struct {
	Class      string               `json:"canonical_class"`
	Confidence *float64             `json:"confidence,omitempty"`
	ClassCodes map[string]string    `json:"class_codes,omitempty"`
	Properties map[string]*Property `json:"properties,omitempty"`
	Model      string               `json:"model,omitempty"`
}

// Reference is a retrieved document snippet used to ground an assist prompt.
type Reference struct {
	ID      string   `json:"doc_id"`
	Title   string   `json:"title,omitempty"`
	Source  string   `json:"source,omitempty"`
	Path    string   `json:"path,omitempty"`
	Snippet string   `json:"snippet,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Score   float64  `json:"score,omitempty"`
	Rerank  float64  `json:"rerank,omitempty"`
}

// Key identifies an entity within a batch. Local ids are only unique within
// one source model.
type Key struct {
	Source string
	ID     string
}

// Key returns the batch key of e.
func (e *Entity) Key() Key {
	return Key{Source: e.Source, ID: e.ID}
}

// Property returns the property with the given name, matched case-insensitively.
func (e *Entity) Property(name string) (*Property, bool) {
	if p, ok := e.Properties[name]; ok {
		return p, true
	}
	for k, p := range e.Properties {
		if strings.EqualFold(k, name) {
			return p, true
		}
	}
	return nil, false
}

// PropertyNames returns property names in lexical order.
func (e *Entity) PropertyNames() []string {
	names := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RelationKinds returns relation kinds in lexical order.
func (e *Entity) RelationKinds() []string {
	kinds := make([]string, 0, len(e.Relations))
	for k := range e.Relations {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// RelatedIDs returns the distinct related ids of a relation kind, first occurrence order.
func (e *Entity) RelatedIDs(kind string) []string {
	ids := e.Relations[kind]
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NeighborClass returns the class an upstream neighbor hint declares for id.
func (e *Entity) NeighborClass(id string) (string, bool) {
	for _, n := range e.Neighbors {
		if n.ID == id && n.Class != "" {
			return n.Class, true
		}
	}
	return "", false
}

// SearchText is the lowercased free text keyword rules match against:
// name, long name, attribute values, property names and textual values.
func (e *Entity) SearchText() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToLower(s))
	}

	write(e.Name)
	write(e.LongName)

	attrKeys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		attrKeys = append(attrKeys, k)
	}
	sort.Strings(attrKeys)
	for _, k := range attrKeys {
		write(e.Attributes[k])
	}

	for _, name := range e.PropertyNames() {
		write(name)
		p := e.Properties[name]
		if p == nil {
			continue
		}
		if p.Text != "" {
			write(p.Text)
		} else if s, ok := p.Raw.(string); ok {
			write(s)
		}
	}
	return b.String()
}
