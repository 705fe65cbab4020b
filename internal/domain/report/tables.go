// Package report projects validation results onto the flat output tables of a
// run: assets, normalized properties, relations, flags, the review queue and
// the incoherence audit trail.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// Table names, shared by every sink.
const (
	TableAssets    = "assets"
	TableProps     = "asset_props"
	TableRelations = "asset_relations"
	TableFlags     = "asset_flags"
	TableReview    = "review_queue"
	TableAudit     = "rule_audit"
)

// Run identifies one validation run.
type Run struct {
	ID            string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	Inputs        []string  `json:"inputs"`
	Mode          string    `json:"mode"`
	CatalogDigest string    `json:"catalog_digest"`
}

// NewRun creates a run with a fresh id.
func NewRun(inputs []string, mode, digest string) Run {
	return Run{
		ID:            uuid.New().String(),
		StartedAt:     time.Now().UTC(),
		Inputs:        inputs,
		Mode:          mode,
		CatalogDigest: digest,
	}
}

// AssetID is the stable id of an entity: a name-based UUID of source and local id,
// so the same element keeps its id across runs.
func AssetID(source, localID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(source+":"+localID)).String()
}

// AssetRow is one canonicalized entity.
type AssetRow struct {
	AssetID        string   `json:"asset_id"`
	Source         string   `json:"source"`
	LocalID        string   `json:"local_id"`
	SourceClass    string   `json:"ifc_class"`
	Name           string   `json:"name"`
	CanonicalClass string   `json:"canonical_class"`
	Tier           string   `json:"tier"`
	Outcome        string   `json:"outcome"`
	ClassSource    string   `json:"class_source"`
	Confidence     *float64 `json:"class_confidence"`
	ClassCodes     string   `json:"class_codes"`
	Label          string   `json:"label"`
	RequiresReview bool     `json:"requires_review"`
	FlagCount      int      `json:"flag_count"`
}

// PropertyRow is one property with its raw and normalized values.
type PropertyRow struct {
	AssetID    string   `json:"asset_id"`
	LocalID    string   `json:"local_id"`
	Name       string   `json:"name"`
	ValueRaw   string   `json:"value_raw"`
	UnitRaw    string   `json:"unit_raw"`
	ValueNorm  *float64 `json:"value_norm"`
	UnitNorm   string   `json:"unit_norm"`
	Quantity   string   `json:"quantity"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Source     string   `json:"source"`
	Reason     string   `json:"reason"`
}

// RelationRow is one related entity of an asset.
type RelationRow struct {
	AssetID      string `json:"asset_id"`
	LocalID      string `json:"local_id"`
	Relation     string `json:"relation"`
	Direction    string `json:"direction"`
	RelatedID    string `json:"neighbor_uid"`
	RelatedClass string `json:"neighbor_class"`
	RelatedName  string `json:"neighbor_name"`
}

// FlagRow is one flag.
type FlagRow struct {
	AssetID  string   `json:"asset_id"`
	LocalID  string   `json:"local_id"`
	Kind     string   `json:"kind"`
	Severity string   `json:"severity"`
	Stage    string   `json:"stage"`
	RuleID   string   `json:"rule_id"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint"`
	Observed *float64 `json:"observed"`
	Limit    *float64 `json:"limit"`
}

// ReviewRow is one entity routed to human review.
type ReviewRow struct {
	AssetID        string   `json:"asset_id"`
	LocalID        string   `json:"local_id"`
	Name           string   `json:"name"`
	CanonicalClass string   `json:"canonical_class"`
	Confidence     *float64 `json:"class_confidence"`
	Errors         int      `json:"errors"`
	Warnings       int      `json:"warnings"`
	Reasons        string   `json:"reasons"`
}

// AuditRow is one incoherence rule evaluation.
type AuditRow struct {
	AssetID     string `json:"asset_id"`
	LocalID     string `json:"local_id"`
	RuleID      string `json:"rule_id"`
	Outcome     string `json:"outcome"`
	ExceptionID string `json:"exception_id"`
	Detail      string `json:"detail"`
}

// Tables holds every output table of a run.
type Tables struct {
	Run       Run           `json:"run"`
	Assets    []AssetRow    `json:"assets"`
	Props     []PropertyRow `json:"asset_props"`
	Relations []RelationRow `json:"asset_relations"`
	Flags     []FlagRow     `json:"asset_flags"`
	Review    []ReviewRow   `json:"review_queue"`
	Audit     []AuditRow    `json:"rule_audit,omitempty"`
}

// BuildOptions controls table projection.
type BuildOptions struct {
	Audit bool // include the incoherence audit table
}

// Build projects entities and their records, which must be index-aligned,
// onto the output tables. Rows keep input order.
func Build(run Run, ents []*entities.Entity, recs []entities.ValidationRecord, opts BuildOptions) (*Tables, error) {
	if len(ents) != len(recs) {
		return nil, fmt.Errorf("building tables: %d entities but %d records", len(ents), len(recs))
	}

	byID := make(map[string]*entities.Entity, len(ents))
	for _, e := range ents {
		byID[e.ID] = e
	}

	t := &Tables{Run: run}
	if opts.Audit {
		t.Audit = []AuditRow{}
	}
	for i, e := range ents {
		rec := &recs[i]
		assetID := AssetID(sourceOf(e), e.ID)

		t.Assets = append(t.Assets, assetRow(assetID, e, rec))
		t.Props = append(t.Props, propertyRows(assetID, e)...)
		t.Relations = append(t.Relations, relationRows(assetID, e, byID)...)

		for _, f := range rec.Flags {
			t.Flags = append(t.Flags, FlagRow{
				AssetID:  assetID,
				LocalID:  e.ID,
				Kind:     string(f.Kind),
				Severity: string(f.Severity),
				Stage:    string(f.Stage),
				RuleID:   f.RuleID,
				Subject:  f.Subject,
				Message:  f.Message,
				Hint:     f.Hint,
				Observed: f.Observed,
				Limit:    f.Limit,
			})
		}

		if rec.RequiresReview {
			t.Review = append(t.Review, ReviewRow{
				AssetID:        assetID,
				LocalID:        e.ID,
				Name:           e.Name,
				CanonicalClass: rec.CanonicalClass,
				Confidence:     rec.Confidence,
				Errors:         countSeverity(rec.Flags, entities.SeverityError),
				Warnings:       countSeverity(rec.Flags, entities.SeverityWarning),
				Reasons:        strings.Join(rec.ReviewReasons, "; "),
			})
		}

		if opts.Audit {
			for _, ev := range rec.Evaluations {
				t.Audit = append(t.Audit, AuditRow{
					AssetID:     assetID,
					LocalID:     e.ID,
					RuleID:      ev.RuleID,
					Outcome:     string(ev.Outcome),
					ExceptionID: ev.ExceptionID,
					Detail:      ev.Detail,
				})
			}
		}
	}

	return t, nil
}

// DefaultSource scopes asset ids of records that name no source model.
const DefaultSource = "local"

func sourceOf(e *entities.Entity) string {
	if e.Source != "" {
		return e.Source
	}
	return DefaultSource
}

func assetRow(assetID string, e *entities.Entity, rec *entities.ValidationRecord) AssetRow {
	row := AssetRow{
		AssetID:        assetID,
		Source:         sourceOf(e),
		LocalID:        e.ID,
		SourceClass:    e.SourceClass,
		Name:           e.Name,
		CanonicalClass: rec.CanonicalClass,
		Tier:           string(rec.Tier),
		Outcome:        string(rec.Outcome),
		ClassSource:    string(rec.ClassSource),
		Confidence:     rec.Confidence,
		Label:          e.Label,
		RequiresReview: rec.RequiresReview,
		FlagCount:      len(rec.Flags),
	}
	if e.Proposal != nil && len(e.Proposal.ClassCodes) > 0 {
		if b, err := json.Marshal(e.Proposal.ClassCodes); err == nil {
			row.ClassCodes = string(b)
		}
	}
	return row
}

func propertyRows(assetID string, e *entities.Entity) []PropertyRow {
	rows := make([]PropertyRow, 0, len(e.Properties))
	for _, name := range e.PropertyNames() {
		p := e.Properties[name]
		if p == nil {
			continue
		}
		source := string(p.Provenance)
		if source == "" {
			source = string(entities.ProvenanceSource)
		}
		rows = append(rows, PropertyRow{
			AssetID:    assetID,
			LocalID:    e.ID,
			Name:       name,
			ValueRaw:   formatRaw(p.Raw),
			UnitRaw:    p.RawUnit,
			ValueNorm:  p.Value,
			UnitNorm:   p.Unit,
			Quantity:   p.Quantity,
			Text:       p.Text,
			Confidence: p.Confidence,
			Source:     source,
			Reason:     p.Note,
		})
	}
	return rows
}

func relationRows(assetID string, e *entities.Entity, byID map[string]*entities.Entity) []RelationRow {
	var rows []RelationRow
	for _, kind := range e.RelationKinds() {
		for _, id := range e.RelatedIDs(kind) {
			row := RelationRow{AssetID: assetID, LocalID: e.ID, Relation: kind, RelatedID: id}
			for _, n := range e.Neighbors {
				if n.ID == id && n.Relation == kind {
					row.Direction = n.Direction
					row.RelatedClass = n.Class
					row.RelatedName = n.Name
					break
				}
			}
			if other, ok := byID[id]; ok {
				if other.CanonicalClass != "" {
					row.RelatedClass = other.CanonicalClass
				}
				if row.RelatedName == "" {
					row.RelatedName = other.Name
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func formatRaw(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func countSeverity(flags []entities.Flag, sev entities.Severity) int {
	n := 0
	for _, f := range flags {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// sortedKeys returns map keys in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
