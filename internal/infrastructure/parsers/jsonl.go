package parsers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xeipuuv/gojsonschema"
)

// maxLineSize bounds one JSONL record.
const maxLineSize = 16 << 20

// JSONLParser reads one JSON record per line, flat or pack shaped.
type JSONLParser struct{}

// Parse reads JSONL from the reader. Blank lines are skipped; every other line
// is checked against the record schema before it is mapped.
func (p *JSONLParser) Parse(r io.Reader, opts Options) (*Result, error) {
	schema, err := loadRecordSchema()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := acceptRecord(res, schema, line, lineNum, opts); err != nil {
			return res, err
		}
		if res.full(opts) {
			return res, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("reading JSONL at line %d: %w", lineNum+1, err)
	}
	return res, nil
}

// acceptRecord checks, maps and collects one record.
func acceptRecord(res *Result, schema *gojsonschema.Schema, data []byte, lineNum int, opts Options) error {
	res.Read++
	if err := checkShape(schema, data); err != nil {
		return res.reject(opts, lineNum, peekID(data), err)
	}
	e, err := decodeRecord(data, opts.Source)
	if err != nil {
		return res.reject(opts, lineNum, peekID(data), err)
	}
	return res.accept(opts, lineNum, e)
}

// peekID extracts the record id for error messages, if the record decodes at all.
func peekID(data []byte) string {
	var head struct {
		ID     string `json:"id"`
		Entity *struct {
			UID      string `json:"uid"`
			GlobalID string `json:"global_id"`
			ID       string `json:"id"`
		} `json:"entity"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	if head.Entity != nil {
		return firstNonEmpty(head.Entity.UID, head.Entity.GlobalID, head.Entity.ID)
	}
	return head.ID
}
