package datasource

import (
	"database/sql"
	"fmt"
	"strings"
)

// ValueConverter maps one scanned value, given its upper-cased database type name.
type ValueConverter func(dbType string, v any) any

// ScanRows drains rows from a database/sql query. A nil convert applies NormalizeValue.
func ScanRows(rows *sql.Rows, convert ValueConverter) ([]string, [][]any, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get column types: %w", err)
	}
	columns := make([]string, len(colTypes))
	dbTypes := make([]string, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ct.Name()
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	var records [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if convert != nil {
				values[i] = convert(dbTypes[i], v)
			} else {
				values[i] = NormalizeValue(v)
			}
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return columns, records, nil
}
