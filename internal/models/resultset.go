package models

import (
	"bytes"
	"encoding/json"
)

// ResultSet is the canonical row-wise result document
// {"count": N, "rows": [{col: val, ...}, ...]}.
//
// Columns keeps the backend's declared column order; Row values are indexed
// in the same order. The custom marshaller exists because row objects must
// serialize their members in column order, which a Go map cannot guarantee.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Row holds one result row, cell values aligned with ResultSet.Columns.
type Row struct {
	Values []any
}

type omitted struct{}

// OmittedValue marks a cell the mapper dropped (a JSON parse failure, for
// example). Marshalling skips the member entirely instead of emitting null.
var OmittedValue any = omitted{}

func (rs *ResultSet) Count() int {
	return len(rs.Rows)
}

// Value returns the named cell of the given row, or nil when the column is
// not part of the result.
func (rs *ResultSet) Value(row int, column string) any {
	for i, c := range rs.Columns {
		if c == column {
			return rs.Rows[row].Values[i]
		}
	}
	return nil
}

func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"count":`)
	count, err := json.Marshal(rs.Count())
	if err != nil {
		return nil, err
	}
	buf.Write(count)
	buf.WriteString(`,"rows":[`)
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		wrote := false
		for j, col := range rs.Columns {
			if _, skip := row.Values[j].(omitted); skip {
				continue
			}
			if wrote {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			val, err := json.Marshal(row.Values[j])
			if err != nil {
				return nil, err
			}
			buf.Write(val)
			wrote = true
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var doc struct {
		Count int              `json:"count"`
		Rows  []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	rs.Columns = nil
	rs.Rows = nil
	if len(doc.Rows) == 0 {
		return nil
	}
	// Column order is lost on the way back in; rebuild it from the first row.
	for col := range doc.Rows[0] {
		rs.Columns = append(rs.Columns, col)
	}
	for _, m := range doc.Rows {
		row := Row{Values: make([]any, len(rs.Columns))}
		for i, col := range rs.Columns {
			row.Values[i] = m[col]
		}
		rs.Rows = append(rs.Rows, row)
	}
	return nil
}

// PurgeReport is the summary document returned by the readings purge.
type PurgeReport struct {
	Removed        int64 `json:"removed"`
	UnsentPurged   int64 `json:"unsentPurged"`
	UnsentRetained int64 `json:"unsentRetained"`
	Readings       int64 `json:"readings"`
}
