package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// Column prefixes of the flat CSV layout. A header "prop.Height" fills the
// Height property; "rel.restsOn" holds ';'-separated related ids.
const (
	csvAttrPrefix   = "attr."
	csvPropPrefix   = "prop."
	csvSignalPrefix = "signal."
	csvRelPrefix    = "rel."
)

// CSVParser reads flat entity records, one per row.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed entities.
// Required columns: id, source_class. Optional: source, name, long_name,
// global_id, tier, label, proposed_class, confidence and the prefixed columns.
func (p *CSVParser) Parse(r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex, opts)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	requiredCols := []string{"id", "source_class"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to entities.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int, opts Options) (*Result, error) {
	res := &Result{}
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNum, err)
		}
		res.Read++

		e, err := p.parseRecord(row, colIndex)
		if err != nil {
			if rejectErr := res.reject(opts, lineNum, getColumn(row, colIndex, "id"), err); rejectErr != nil {
				return res, rejectErr
			}
			continue
		}
		if e.Source == "" {
			e.Source = opts.Source
		}
		if err := res.accept(opts, lineNum, e); err != nil {
			return res, err
		}
		if res.full(opts) {
			break
		}
	}

	return res, nil
}

// parseRecord converts a CSV row to an entity.
func (p *CSVParser) parseRecord(row []string, colIndex map[string]int) (*entities.Entity, error) {
	e := &entities.Entity{
		ID:          getColumn(row, colIndex, "id"),
		Source:      getColumn(row, colIndex, "source"),
		SourceClass: getColumn(row, colIndex, "source_class"),
		Name:        getColumn(row, colIndex, "name"),
		LongName:    getColumn(row, colIndex, "long_name"),
		GlobalID:    getColumn(row, colIndex, "global_id"),
		Label:       getColumn(row, colIndex, "label"),
	}
	if e.ID == "" {
		return nil, errMissingID
	}
	if e.SourceClass == "" {
		return nil, errors.New("record has no source_class")
	}

	if tier := getColumn(row, colIndex, "tier"); tier != "" {
		t, err := entities.ParseTier(tier)
		if err != nil {
			return nil, err
		}
		e.Tier = t
	}

	var conf *float64
	if confStr := getColumn(row, colIndex, "confidence"); confStr != "" {
		c, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence value %q: %w", confStr, err)
		}
		if c < 0 || c > 1 {
			return nil, fmt.Errorf("confidence %g outside [0, 1]", c)
		}
		conf = entities.Float(c)
	}
	if proposed := getColumn(row, colIndex, "proposed_class"); proposed != "" {
		e.Proposal = &entities.Proposal{Class: proposed, Confidence: conf}
	} else {
		e.Confidence = conf
	}

	for col, idx := range colIndex {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		switch {
		case strings.HasPrefix(col, csvAttrPrefix):
			if e.Attributes == nil {
				e.Attributes = make(map[string]string)
			}
			e.Attributes[strings.TrimPrefix(col, csvAttrPrefix)] = cell
		case strings.HasPrefix(col, csvPropPrefix):
			if e.Properties == nil {
				e.Properties = make(map[string]*entities.Property)
			}
			name := strings.TrimPrefix(col, csvPropPrefix)
			e.Properties[name] = &entities.Property{Name: name, Raw: cell, Provenance: entities.ProvenanceSource}
		case strings.HasPrefix(col, csvSignalPrefix):
			if e.Signals == nil {
				e.Signals = make(map[string]any)
			}
			e.Signals[strings.TrimPrefix(col, csvSignalPrefix)] = parseSignal(cell)
		case strings.HasPrefix(col, csvRelPrefix):
			if e.Relations == nil {
				e.Relations = make(map[string][]string)
			}
			var ids []string
			for _, id := range strings.Split(cell, ";") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			e.Relations[strings.TrimPrefix(col, csvRelPrefix)] = ids
		}
	}

	return e, nil
}

// parseSignal reads a signal cell as a bool or number, falling back to text.
func parseSignal(cell string) any {
	switch strings.ToLower(cell) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
