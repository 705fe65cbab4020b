package predicate

import (
	"fmt"
	"strings"
)

// Scalar fields of an entity.
const (
	FieldName           = "name"
	FieldLongName       = "long_name"
	FieldText           = "text"
	FieldSourceClass    = "source_class"
	FieldCanonicalClass = "canonical_class"
	FieldTier           = "tier"
	FieldConfidence     = "confidence"
	FieldClassSource    = "class_source"
)

// Namespaces for keyed fields.
const (
	NamespaceScalar = ""
	NamespaceAttr   = "attr"
	NamespaceProp   = "prop"
	NamespaceSignal = "signal"
	NamespaceRel    = "rel"
)

// Aspects of a relation field, e.g. rel.restsOn.count.
const (
	RelCount   = "count"
	RelClasses = "classes"
	RelIDs     = "ids"
)

var scalarFields = map[string]bool{
	FieldName:           true,
	FieldLongName:       true,
	FieldText:           true,
	FieldSourceClass:    true,
	FieldCanonicalClass: true,
	FieldTier:           true,
	FieldConfidence:     true,
	FieldClassSource:    true,
}

// FieldRef is a parsed field name.
type FieldRef struct {
	Namespace string
	Key       string
	Aspect    string // only for relation fields
}

// ParseField splits a field name into its namespace, key and aspect.
func ParseField(field string) (FieldRef, error) {
	if scalarFields[field] {
		return FieldRef{Namespace: NamespaceScalar, Key: field}, nil
	}

	ns, rest, ok := strings.Cut(field, ".")
	if !ok || rest == "" {
		return FieldRef{}, fmt.Errorf("unknown field %q", field)
	}

	switch ns {
	case NamespaceAttr, NamespaceProp, NamespaceSignal:
		return FieldRef{Namespace: ns, Key: rest}, nil
	case NamespaceRel:
		i := strings.LastIndex(rest, ".")
		if i <= 0 || i == len(rest)-1 {
			return FieldRef{}, fmt.Errorf("relation field %q must be rel.<kind>.<count|classes|ids>", field)
		}
		kind, aspect := rest[:i], rest[i+1:]
		switch aspect {
		case RelCount, RelClasses, RelIDs:
			return FieldRef{Namespace: NamespaceRel, Key: kind, Aspect: aspect}, nil
		default:
			return FieldRef{}, fmt.Errorf("relation field %q has unknown aspect %q", field, aspect)
		}
	default:
		return FieldRef{}, fmt.Errorf("unknown field namespace %q in %q", ns, field)
	}
}
