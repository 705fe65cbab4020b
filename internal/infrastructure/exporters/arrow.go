package exporters

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/ersonp/trustbim/internal/domain/report"
)

// ArrowSink writes one Arrow IPC file per table.
type ArrowSink struct {
	dir string
	mem memory.Allocator
}

// NewArrowSink creates an Arrow IPC sink writing into dir.
func NewArrowSink(dir string) *ArrowSink {
	return &ArrowSink{dir: dir, mem: memory.NewGoAllocator()}
}

// Name returns the sink name.
func (s *ArrowSink) Name() string { return FormatArrow }

// Write writes every table as <table>.arrow holding a single record batch.
func (s *ArrowSink) Write(ctx context.Context, tables *report.Tables) error {
	for _, tbl := range tables.Tabular() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeTable(tbl); err != nil {
			return err
		}
	}
	return nil
}

// ArrowSchema maps a table's columns onto an Arrow schema. Every column is nullable.
func ArrowSchema(tbl report.Table) *arrow.Schema {
	fields := make([]arrow.Field, len(tbl.Columns))
	for i, c := range tbl.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t report.ColumnType) arrow.DataType {
	switch t {
	case report.Float:
		return arrow.PrimitiveTypes.Float64
	case report.Int:
		return arrow.PrimitiveTypes.Int64
	case report.Bool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func (s *ArrowSink) writeTable(tbl report.Table) (err error) {
	schema := ArrowSchema(tbl)
	rec, err := s.buildRecord(schema, tbl)
	if err != nil {
		return err
	}
	defer rec.Release()

	f, err := createFile(s.dir, tbl.Name+".arrow")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s.arrow: %w", tbl.Name, cerr)
		}
	}()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(s.mem))
	if err != nil {
		return fmt.Errorf("opening %s.arrow: %w", tbl.Name, err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s.arrow: %w", tbl.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing %s.arrow: %w", tbl.Name, err)
	}
	return nil
}

func (s *ArrowSink) buildRecord(schema *arrow.Schema, tbl report.Table) (arrow.Record, error) {
	b := array.NewRecordBuilder(s.mem, schema)
	defer b.Release()

	for r, cells := range tbl.Rows {
		for i, cell := range cells {
			if err := appendCell(b.Field(i), cell); err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", tbl.Name, r, tbl.Columns[i].Name, err)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendCell(fb array.Builder, cell any) error {
	if cell == nil {
		fb.AppendNull()
		return nil
	}
	switch b := fb.(type) {
	case *array.StringBuilder:
		v, ok := cell.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", cell)
		}
		b.Append(v)
	case *array.Float64Builder:
		v, ok := cell.(float64)
		if !ok {
			return fmt.Errorf("want float64, got %T", cell)
		}
		b.Append(v)
	case *array.Int64Builder:
		v, ok := cell.(int64)
		if !ok {
			return fmt.Errorf("want int64, got %T", cell)
		}
		b.Append(v)
	case *array.BooleanBuilder:
		v, ok := cell.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", cell)
		}
		b.Append(v)
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}
