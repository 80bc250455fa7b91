package source

import (
	"fmt"

	"github.com/BartekS5/bigsitemap/pkg/utils"
)

// timestampColumns are tried in order when no last-modified column is configured.
var timestampColumns = []string{"updated_at", "updated_on", "updated", "created_at", "created_on", "created"}

// FieldMapping names the columns a record is built from.
type FieldMapping struct {
	PrimaryKey    string
	ParamColumn   string // defaults to PrimaryKey
	LastModColumn string // defaults to the first present of timestampColumns
}

func (m FieldMapping) paramColumn() string {
	if m.ParamColumn != "" {
		return m.ParamColumn
	}
	return m.PrimaryKey
}

// ToRecord builds a Record from a scanned row or decoded document.
func (m FieldMapping) ToRecord(fields map[string]interface{}) (Record, error) {
	rec := Record{Fields: fields}

	if m.PrimaryKey != "" {
		key, ok := fields[m.PrimaryKey]
		if !ok || key == nil {
			return rec, fmt.Errorf("record without primary key %s", m.PrimaryKey)
		}
		rec.Key = utils.NormalizeKey(key)
	}

	if col := m.paramColumn(); col != "" {
		if v, ok := fields[col]; ok && v != nil {
			rec.Param = ParamString(v)
		}
	}

	col := m.LastModColumn
	if col == "" {
		for _, c := range timestampColumns {
			if _, ok := fields[c]; ok {
				col = c
				break
			}
		}
	}
	if col != "" {
		modified, err := utils.ConvertDateTime(fields[col])
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", col, err)
		}
		rec.Modified = modified
	}
	return rec, nil
}

// ParamString renders a column value as a URL segment.
func ParamString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case interface{ Hex() string }:
		return x.Hex()
	case fmt.Stringer:
		return x.String()
	}
	if key := utils.NormalizeKey(v); utils.IsIntegral(key) {
		return fmt.Sprintf("%d", key)
	}
	return fmt.Sprintf("%v", v)
}
