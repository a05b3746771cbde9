// Package models contains domain types for ekaya-joins.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Row maps a column name to a scalar cell value.
type Row map[string]any

// Dataset is one uploaded or loaded table.
// Columns carries the stable column order; Rows may omit columns, which read as nil.
type Dataset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewDataset builds a Dataset from rows.
// If columns is empty, the column order is the first-seen order of keys across rows,
// with keys of each row visited in sorted order (plain maps carry no order).
// Row maps are copied so the dataset does not alias caller data.
func NewDataset(name string, columns []string, rows []Row) *Dataset {
	if len(columns) == 0 {
		columns = columnsFromRows(rows)
	} else {
		columns = append([]string(nil), columns...)
	}

	copied := make([]Row, len(rows))
	for i, r := range rows {
		row := make(Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		copied[i] = row
	}

	return &Dataset{Name: name, Columns: columns, Rows: copied}
}

// Value returns the cell at (row, column), or nil when absent.
func (d *Dataset) Value(row int, column string) any {
	return d.Rows[row][column]
}

// HasColumn reports whether the dataset declares the column.
func (d *Dataset) HasColumn(column string) bool {
	return d.ColumnIndex(column) >= 0
}

// ColumnIndex returns the position of column in Columns, or -1.
func (d *Dataset) ColumnIndex(column string) int {
	for i, c := range d.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// DecodeRows decodes a JSON array of row objects while keeping key order.
// The returned columns are the union of keys in first-seen order.
// Numbers are decoded exactly: integers become int64, integers outside the
// int64 range stay json.Number, and other numbers become float64.
func DecodeRows(raw json.RawMessage) ([]string, []Row, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}

	var objects []*orderedmap.OrderedMap[string, json.RawMessage]
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, nil, fmt.Errorf("rows must be a list of objects: %w", err)
	}

	var columns []string
	seen := make(map[string]bool)
	rows := make([]Row, 0, len(objects))
	for i, obj := range objects {
		if obj == nil {
			return nil, nil, fmt.Errorf("row %d is null", i)
		}
		row := make(Row, obj.Len())
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			if !seen[pair.Key] {
				seen[pair.Key] = true
				columns = append(columns, pair.Key)
			}
			v, err := decodeValue(pair.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d, column %q: %w", i, pair.Key, err)
			}
			row[pair.Key] = v
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}

// decodeValue decodes one JSON cell with UseNumber so large integers keep
// every digit.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		return numberValue(n)
	}
	return v, nil
}

func numberValue(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if isIntegerLiteral(n.String()) {
		return n, nil
	}
	return n.Float64()
}

// isIntegerLiteral reports a JSON number with no fraction or exponent.
func isIntegerLiteral(s string) bool {
	_, ok := new(big.Int).SetString(s, 10)
	return ok
}

func columnsFromRows(rows []Row) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}
