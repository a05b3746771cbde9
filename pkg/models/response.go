package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OrderedRow is a row that serializes its cells in column order.
type OrderedRow = *orderedmap.OrderedMap[string, any]

// OrderRows converts rows to OrderedRows following columns. Missing cells render as null.
func OrderRows(columns []string, rows []Row) []OrderedRow {
	out := make([]OrderedRow, 0, len(rows))
	for _, r := range rows {
		om := orderedmap.New[string, any]()
		for _, col := range columns {
			om.Set(col, r[col])
		}
		out = append(out, om)
	}
	return out
}

// JoinResponse is the presented result of a join: a preview of the merged table,
// its full shape, and the provenance log.
type JoinResponse struct {
	Data        []OrderedRow `json:"data"`
	Columns     []string     `json:"columns"`
	RowCount    int          `json:"row_count"`
	JoinSummary []string     `json:"join_summary"`
}
