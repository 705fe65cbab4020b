package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// record is one input line. Flat records carry the entity fields at the top
// level; pack records nest them under "entity".
type record struct {
	// Flat shape.
	ID            string              `json:"id"`
	Source        string              `json:"source"`
	SourceClass   string              `json:"source_class"`
	Name          string              `json:"name"`
	LongName      string              `json:"long_name"`
	GlobalID      string              `json:"global_id"`
	Attributes    map[string]any      `json:"attributes"`
	Properties    map[string]any      `json:"properties"`
	Relations     map[string][]string `json:"relations"`
	Tier          string              `json:"tier"`
	ProposedClass string              `json:"proposed_class"`
	Confidence    *float64            `json:"confidence"`
	Signals       map[string]any      `json:"signals"`
	Label         string              `json:"label"`
	SpatialPath   []string            `json:"spatial_path"`

	// Pack shape.
	RunID  string      `json:"run_id"`
	Entity *packEntity `json:"entity"`

	// Shared.
	Neighbors     []entities.Neighbor  `json:"neighbors"`
	RetrievedDocs []entities.Reference `json:"retrieved_docs"`
	Proposal      *proposalRecord      `json:"proposal"`
}

type packEntity struct {
	UID         string         `json:"uid"`
	ID          string         `json:"id"`
	IfcClass    string         `json:"ifc_class"`
	Name        string         `json:"name"`
	LongName    string         `json:"long_name"`
	GlobalID    string         `json:"global_id"`
	Attributes  map[string]any `json:"attributes"`
	Properties  map[string]any `json:"properties"`
	Signals     map[string]any `json:"signals"`
	SpatialPath []string       `json:"spatial_path"`
	TierLabel   string         `json:"tier_label"`
}

type proposalRecord struct {
	CanonicalClass string            `json:"canonical_class"`
	Confidence     *float64          `json:"confidence"`
	ClassCodes     map[string]string `json:"class_codes"`
	Properties     map[string]any    `json:"properties"`
	Model          string            `json:"model"`
}

var errMissingID = errors.New("record has no id")

// decodeRecord maps one JSON record onto an entity.
func decodeRecord(data []byte, defaultSource string) (*entities.Entity, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return rec.toEntity(defaultSource)
}

func (r *record) toEntity(defaultSource string) (*entities.Entity, error) {
	var e *entities.Entity
	var err error
	if r.Entity != nil {
		e, err = r.packEntity()
	} else {
		e, err = r.flatEntity()
	}
	if err != nil {
		return nil, err
	}

	if e.Source == "" {
		e.Source = defaultSource
	}
	for _, n := range r.Neighbors {
		if n.ID == "" || n.Relation == "" {
			continue
		}
		if e.Relations == nil {
			e.Relations = make(map[string][]string)
		}
		e.Relations[n.Relation] = append(e.Relations[n.Relation], n.ID)
		e.Neighbors = append(e.Neighbors, n)
	}
	e.References = r.RetrievedDocs

	if r.Proposal != nil && r.Proposal.CanonicalClass != "" {
		props, err := parseProperties(r.Proposal.Properties, entities.ProvenanceInferred)
		if err != nil {
			return nil, fmt.Errorf("proposal: %w", err)
		}
		e.Proposal = &entities.Proposal{
			Class:      r.Proposal.CanonicalClass,
			Confidence: r.Proposal.Confidence,
			ClassCodes: r.Proposal.ClassCodes,
			Properties: props,
			Model:      r.Proposal.Model,
		}
	}
	return e, nil
}

func (r *record) flatEntity() (*entities.Entity, error) {
	if r.ID == "" {
		return nil, errMissingID
	}
	props, err := parseProperties(r.Properties, entities.ProvenanceSource)
	if err != nil {
		return nil, err
	}

	e := &entities.Entity{
		ID:          r.ID,
		Source:      r.Source,
		SourceClass: r.SourceClass,
		Name:        r.Name,
		LongName:    r.LongName,
		GlobalID:    r.GlobalID,
		Attributes:  stringifyAttributes(r.Attributes),
		Properties:  props,
		Signals:     r.Signals,
		SpatialPath: r.SpatialPath,
		Label:       r.Label,
	}
	if r.Tier != "" {
		tier, err := entities.ParseTier(r.Tier)
		if err != nil {
			return nil, err
		}
		e.Tier = tier
	}
	if len(r.Relations) > 0 {
		e.Relations = make(map[string][]string, len(r.Relations))
		for kind, ids := range r.Relations {
			e.Relations[kind] = append([]string(nil), ids...)
		}
	}

	// A flat confidence belongs to the proposed class when there is one.
	if r.ProposedClass != "" {
		e.Proposal = &entities.Proposal{Class: r.ProposedClass, Confidence: r.Confidence}
	} else {
		e.Confidence = r.Confidence
	}
	return e, nil
}

func (r *record) packEntity() (*entities.Entity, error) {
	pe := r.Entity
	id := firstNonEmpty(pe.UID, pe.GlobalID, pe.ID)
	if id == "" {
		return nil, errMissingID
	}
	props, err := parseProperties(flattenPsets(pe.Properties), entities.ProvenanceSource)
	if err != nil {
		return nil, err
	}
	return &entities.Entity{
		ID:          id,
		Source:      r.RunID,
		SourceClass: pe.IfcClass,
		Name:        pe.Name,
		LongName:    pe.LongName,
		GlobalID:    pe.GlobalID,
		Attributes:  stringifyAttributes(pe.Attributes),
		Properties:  props,
		Signals:     pe.Signals,
		SpatialPath: pe.SpatialPath,
		Label:       pe.TierLabel,
	}, nil
}

// flattenPsets lifts property-set members to the top level. Psets are visited
// in lexical order and a later pset overwrites an earlier member of the same
// name. Value objects ({"v": ...}) and scalars at the top level are kept as is.
func flattenPsets(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for _, name := range sortedKeys(in) {
		pset, ok := in[name].(map[string]any)
		if !ok || isValueObject(pset) {
			out[name] = in[name]
			continue
		}
		for k, v := range pset {
			if k == "id" {
				continue
			}
			out[k] = v
		}
	}
	return out
}

func isValueObject(m map[string]any) bool {
	_, ok := m["v"]
	return ok
}

// parseProperties converts raw property values: scalars or {v,u,confidence,source}.
func parseProperties(in map[string]any, provenance entities.Provenance) (map[string]*entities.Property, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]*entities.Property, len(in))
	for name, raw := range in {
		p := &entities.Property{Name: name, Provenance: provenance}
		switch v := raw.(type) {
		case map[string]any:
			if !isValueObject(v) {
				return nil, fmt.Errorf("property %q: object value without \"v\"", name)
			}
			p.Raw = v["v"]
			if u, ok := v["u"].(string); ok {
				p.RawUnit = u
			}
			if c, ok := v["confidence"].(float64); ok {
				p.Confidence = entities.Float(c)
			}
			if src, ok := v["source"].(string); ok {
				p.Provenance = provenanceOf(src, provenance)
			}
		case []any:
			return nil, fmt.Errorf("property %q: list values are not supported", name)
		default:
			p.Raw = v
		}
		out[name] = p
	}
	return out, nil
}

func provenanceOf(source string, fallback entities.Provenance) entities.Provenance {
	switch strings.ToLower(source) {
	case "ifc", "source", "model":
		return entities.ProvenanceSource
	case "llm", "inferred", "assist":
		return entities.ProvenanceInferred
	default:
		return fallback
	}
}

func stringifyAttributes(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'g', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(x)
		default:
			b, err := json.Marshal(x)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
