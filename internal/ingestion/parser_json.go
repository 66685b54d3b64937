package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// ParseJSON parses an array of transaction objects. The batch's columns are
// the union of keys seen across all objects; null values are missing. An
// empty array declares every input column, like a header-only CSV.
func ParseJSON(data []byte) (*domain.Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	if len(entries) == 0 {
		columns := make([]string, 0, len(domain.InputSchema))
		for _, f := range domain.InputSchema {
			columns = append(columns, f.Name)
		}
		return domain.NewBatch(columns, nil), nil
	}

	var columns []string
	seen := make(map[string]bool)
	rows := make([]domain.RawTransaction, 0, len(entries))

	for i, entry := range entries {
		var row domain.RawTransaction
		for col, v := range entry {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
			if v == nil {
				continue
			}
			if err := setField(&row, col, jsonText(v)); err != nil {
				return nil, fmt.Errorf("record %d %w", i, err)
			}
		}
		rows = append(rows, row)
	}

	return domain.NewBatch(columns, rows), nil
}

func jsonText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
