package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/christoofar/FogLAMP/internal/models"
)

// timestampLayout is how timestamp cells are rendered in result documents.
const timestampLayout = "2006-01-02 15:04:05.999999"

// mapResultSet converts a row set into the canonical result document. The
// backend's declared column order is preserved. A JSON cell that fails to
// parse is skipped with an operation error recorded; mapping continues.
func mapResultSet(operation string, rows *sql.Rows, sink *errorSink) (*models.ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &models.ResultSet{Columns: columns}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := models.Row{Values: make([]any, len(columns))}
		for i, cell := range cells {
			row.Values[i] = mapCell(operation, types[i], cell, sink)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

func mapCell(operation string, colType *sql.ColumnType, cell any, sink *errorSink) any {
	if cell == nil {
		return nil
	}
	switch colType.DatabaseTypeName() {
	case "JSON":
		switch cell.(type) {
		case string, []byte:
		default:
			// The driver can hand JSON cells over already decoded.
			return cell
		}
		var parsed any
		if err := json.Unmarshal([]byte(cellText(cell)), &parsed); err != nil {
			if sink != nil {
				sink.raise(operation, "failed to parse JSON column %q: %v", colType.Name(), err)
			}
			return models.OmittedValue
		}
		return parsed
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT", "UBIGINT", "UINTEGER":
		return cellInt(cell)
	case "DOUBLE", "FLOAT", "DECIMAL":
		return cellFloat(cell)
	case "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		if ts, ok := cell.(time.Time); ok {
			return ts.Format(timestampLayout)
		}
		return cellText(cell)
	case "CHAR", "BPCHAR":
		// Fixed-width char columns are padded; trim the trailing spaces.
		return strings.TrimRight(cellText(cell), " ")
	default:
		return cellText(cell)
	}
}

func cellText(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func cellInt(cell any) int64 {
	switch v := cell.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func cellFloat(cell any) float64 {
	switch v := cell.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
