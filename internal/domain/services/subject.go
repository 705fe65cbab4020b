package services

import (
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/predicate"
)

// NeighborInfo is what validators may know about another entity of the batch.
type NeighborInfo struct {
	Class string
	Tier  entities.Tier
}

// NeighborIndex maps the (source, id) keys of a batch to their resolved class
// and tier. It is built after canonicalization and only read afterwards.
type NeighborIndex map[entities.Key]NeighborInfo

// NewNeighborIndex indexes resolved entities by key. Keys are expected to be
// unique; the parsers reject duplicates. Should one slip through, the first
// entity keeps the slot.
func NewNeighborIndex(ents []*entities.Entity) NeighborIndex {
	idx := make(NeighborIndex, len(ents))
	for _, e := range ents {
		if e == nil || e.ID == "" {
			continue
		}
		if _, dup := idx[e.Key()]; dup {
			continue
		}
		idx[e.Key()] = NeighborInfo{Class: e.CanonicalClass, Tier: e.Tier}
	}
	return idx
}

// ClassOf resolves the class of a related id: the batch index within the
// referencing entity's source first, then the hint carried on the entity.
func (idx NeighborIndex) ClassOf(e *entities.Entity, id string) (string, bool) {
	if info, ok := idx[entities.Key{Source: e.Source, ID: id}]; ok && info.Class != "" {
		return info.Class, true
	}
	return e.NeighborClass(id)
}

// entitySubject exposes an entity to predicates.
type entitySubject struct {
	e     *entities.Entity
	index NeighborIndex
	text  string // lazily built search text
}

func newSubject(e *entities.Entity, index NeighborIndex) *entitySubject {
	return &entitySubject{e: e, index: index}
}

func (s *entitySubject) searchText() string {
	if s.text == "" {
		s.text = s.e.SearchText()
	}
	return s.text
}

// Lookup implements predicate.Subject.
func (s *entitySubject) Lookup(field string) (any, bool, error) {
	ref, err := predicate.ParseField(field)
	if err != nil {
		return nil, false, err
	}

	switch ref.Namespace {
	case predicate.NamespaceScalar:
		return s.scalar(ref.Key)
	case predicate.NamespaceAttr:
		return s.attribute(ref.Key)
	case predicate.NamespaceProp:
		return s.property(ref.Key)
	case predicate.NamespaceSignal:
		return s.signal(ref.Key)
	case predicate.NamespaceRel:
		return s.relation(ref.Key, ref.Aspect)
	default:
		return nil, false, fmt.Errorf("unsupported field %q", field)
	}
}

func (s *entitySubject) scalar(key string) (any, bool, error) {
	str := func(v string) (any, bool, error) {
		return v, v != "", nil
	}

	switch key {
	case predicate.FieldName:
		return str(s.e.Name)
	case predicate.FieldLongName:
		return str(s.e.LongName)
	case predicate.FieldText:
		return str(s.searchText())
	case predicate.FieldSourceClass:
		return str(s.e.SourceClass)
	case predicate.FieldCanonicalClass:
		return str(s.e.CanonicalClass)
	case predicate.FieldTier:
		return str(string(s.e.Tier))
	case predicate.FieldClassSource:
		return str(string(s.e.ClassSource))
	case predicate.FieldConfidence:
		if s.e.Confidence == nil {
			return nil, false, nil
		}
		return *s.e.Confidence, true, nil
	default:
		return nil, false, fmt.Errorf("unknown field %q", key)
	}
}

func (s *entitySubject) attribute(key string) (any, bool, error) {
	if v, ok := s.e.Attributes[key]; ok {
		return v, true, nil
	}
	for k, v := range s.e.Attributes {
		if strings.EqualFold(k, key) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// property returns the normalized number, else the text value. A property
// that resolved to neither counts as missing.
func (s *entitySubject) property(key string) (any, bool, error) {
	p, ok := s.e.Property(key)
	if !ok || p == nil {
		return nil, false, nil
	}
	if p.Value != nil {
		return *p.Value, true, nil
	}
	if p.Text != "" {
		return p.Text, true, nil
	}
	return nil, false, nil
}

func (s *entitySubject) signal(key string) (any, bool, error) {
	if v, ok := s.e.Signals[key]; ok {
		return v, v != nil, nil
	}
	for k, v := range s.e.Signals {
		if strings.EqualFold(k, key) {
			return v, v != nil, nil
		}
	}
	return nil, false, nil
}

// relation answers rel.<kind>.<aspect>. A relation kind the entity does not
// carry still has a count of zero and empty lists, so "none_in" style checks
// behave on isolated elements.
func (s *entitySubject) relation(kind, aspect string) (any, bool, error) {
	ids := s.e.RelatedIDs(kind)

	switch aspect {
	case predicate.RelCount:
		return float64(len(ids)), true, nil
	case predicate.RelIDs:
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out, true, nil
	case predicate.RelClasses:
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			if class, ok := s.index.ClassOf(s.e, id); ok {
				out = append(out, class)
			}
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("unknown relation aspect %q", aspect)
	}
}
