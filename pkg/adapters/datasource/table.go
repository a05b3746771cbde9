package datasource

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// SplitTableName splits "schema.table" into its parts. The schema is empty
// when the name is unqualified.
func SplitTableName(table string) (schema, name string, err error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", "", fmt.Errorf("%w: table name is required", apperrors.ErrMalformedDataset)
	}

	parts := strings.Split(table, ".")
	switch {
	case len(parts) == 1:
		return "", parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: invalid table name %q", apperrors.ErrMalformedDataset, table)
	}
}

// BuildDataset assembles a dataset from column names and scanned records.
// Record values are normalized with NormalizeValue.
func BuildDataset(name string, columns []string, records [][]any) *models.Dataset {
	rows := make([]models.Row, 0, len(records))
	for _, record := range records {
		row := make(models.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = NormalizeValue(record[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return &models.Dataset{Name: name, Columns: append([]string(nil), columns...), Rows: rows}
}

// NormalizeValue converts driver values into the scalar types join keys compare:
// byte slices become strings and times are kept in UTC.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}
