package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ColumnInsight summarizes one column of an uploaded dataset.
// Numeric columns carry the statistics; other columns carry Top.
type ColumnInsight struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Avg    *float64 `json:"avg,omitempty"`
	Sum    *float64 `json:"sum,omitempty"`
	Median *float64 `json:"median,omitempty"`

	// Top maps the most frequent values to their counts, most frequent first.
	Top *orderedmap.OrderedMap[string, int] `json:"top,omitempty"`
}

// DatasetSummary is the shape of an uploaded dataset.
type DatasetSummary struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// DatasetProfile describes an uploaded dataset: a preview, its shape and per-column insights.
type DatasetProfile struct {
	Headers []string       `json:"headers"`
	Data    []OrderedRow   `json:"data"`
	Summary DatasetSummary `json:"summary"`
	// Insights is keyed by column name in column order.
	Insights *orderedmap.OrderedMap[string, ColumnInsight] `json:"insights"`
}
