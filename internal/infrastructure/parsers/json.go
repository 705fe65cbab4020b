package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser reads a JSON array of records.
type JSONParser struct{}

// Parse reads a JSON array from the reader. Record errors report the
// 1-indexed array position as the line.
func (p *JSONParser) Parse(r io.Reader, opts Options) (*Result, error) {
	schema, err := loadRecordSchema()
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&raws); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	res := &Result{}
	for i, raw := range raws {
		if err := acceptRecord(res, schema, raw, i+1, opts); err != nil {
			return res, err
		}
		if res.full(opts) {
			break
		}
	}
	return res, nil
}
