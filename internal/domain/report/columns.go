package report

// ColumnType is the storage type of a column.
type ColumnType int

// Column types.
const (
	String ColumnType = iota
	Float             // nullable float64; cells are float64 or nil
	Int
	Bool
)

// Column describes one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a row-major, typed view of one output table, consumed by the
// columnar and relational sinks. Cells hold string, float64, int64, bool or nil.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Tabular returns the tables in a fixed order. The audit table is included
// only when it was built.
func (t *Tables) Tabular() []Table {
	out := []Table{
		t.assetsTable(),
		t.propsTable(),
		t.relationsTable(),
		t.flagsTable(),
		t.reviewTable(),
	}
	if t.Audit != nil {
		out = append(out, t.auditTable())
	}
	return out
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (t *Tables) assetsTable() Table {
	tbl := Table{
		Name: TableAssets,
		Columns: []Column{
			{"asset_id", String}, {"source", String}, {"local_id", String}, {"ifc_class", String},
			{"name", String}, {"canonical_class", String}, {"tier", String}, {"outcome", String},
			{"class_source", String}, {"class_confidence", Float}, {"class_codes", String},
			{"label", String}, {"requires_review", Bool}, {"flag_count", Int},
		},
	}
	for _, r := range t.Assets {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.Source, r.LocalID, r.SourceClass,
			r.Name, r.CanonicalClass, r.Tier, r.Outcome,
			r.ClassSource, nullable(r.Confidence), r.ClassCodes,
			r.Label, r.RequiresReview, int64(r.FlagCount),
		})
	}
	return tbl
}

func (t *Tables) propsTable() Table {
	tbl := Table{
		Name: TableProps,
		Columns: []Column{
			{"asset_id", String}, {"local_id", String}, {"name", String}, {"value_raw", String},
			{"unit_raw", String}, {"value_norm", Float}, {"unit_norm", String}, {"quantity", String},
			{"text", String}, {"confidence", Float}, {"source", String}, {"reason", String},
		},
	}
	for _, r := range t.Props {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.LocalID, r.Name, r.ValueRaw,
			r.UnitRaw, nullable(r.ValueNorm), r.UnitNorm, r.Quantity,
			r.Text, nullable(r.Confidence), r.Source, r.Reason,
		})
	}
	return tbl
}

func (t *Tables) relationsTable() Table {
	tbl := Table{
		Name: TableRelations,
		Columns: []Column{
			{"asset_id", String}, {"local_id", String}, {"relation", String}, {"direction", String},
			{"neighbor_uid", String}, {"neighbor_class", String}, {"neighbor_name", String},
		},
	}
	for _, r := range t.Relations {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.LocalID, r.Relation, r.Direction,
			r.RelatedID, r.RelatedClass, r.RelatedName,
		})
	}
	return tbl
}

func (t *Tables) flagsTable() Table {
	tbl := Table{
		Name: TableFlags,
		Columns: []Column{
			{"asset_id", String}, {"local_id", String}, {"kind", String}, {"severity", String},
			{"stage", String}, {"rule_id", String}, {"subject", String}, {"message", String},
			{"hint", String}, {"observed", Float}, {"limit", Float},
		},
	}
	for _, r := range t.Flags {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.LocalID, r.Kind, r.Severity,
			r.Stage, r.RuleID, r.Subject, r.Message,
			r.Hint, nullable(r.Observed), nullable(r.Limit),
		})
	}
	return tbl
}

func (t *Tables) reviewTable() Table {
	tbl := Table{
		Name: TableReview,
		Columns: []Column{
			{"asset_id", String}, {"local_id", String}, {"name", String}, {"canonical_class", String},
			{"class_confidence", Float}, {"errors", Int}, {"warnings", Int}, {"reasons", String},
		},
	}
	for _, r := range t.Review {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.LocalID, r.Name, r.CanonicalClass,
			nullable(r.Confidence), int64(r.Errors), int64(r.Warnings), r.Reasons,
		})
	}
	return tbl
}

func (t *Tables) auditTable() Table {
	tbl := Table{
		Name: TableAudit,
		Columns: []Column{
			{"asset_id", String}, {"local_id", String}, {"rule_id", String},
			{"outcome", String}, {"exception_id", String}, {"detail", String},
		},
	}
	for _, r := range t.Audit {
		tbl.Rows = append(tbl.Rows, []any{
			r.AssetID, r.LocalID, r.RuleID, r.Outcome, r.ExceptionID, r.Detail,
		})
	}
	return tbl
}
