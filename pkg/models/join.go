package models

import (
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/ekaya-joins/pkg/jsonutil"
)

// JoinMode identifies how a join plan was produced.
type JoinMode string

const (
	JoinModeAuto     JoinMode = "auto"     // keys inferred from value overlap
	JoinModeExplicit JoinMode = "explicit" // keys supplied by the caller
)

// ColumnPairMatch scores one column pair across two datasets.
// Score is the number of distinct values present in both columns.
type ColumnPairMatch struct {
	DatasetA string `json:"file1"`
	ColumnA  string `json:"col1"`
	DatasetB string `json:"file2"`
	ColumnB  string `json:"col2"`
	Score    int    `json:"score"`

	// Positions in the input, used for deterministic ordering and planning.
	DatasetIndexA int `json:"-"`
	DatasetIndexB int `json:"-"`
	ColumnIndexA  int `json:"-"`
	ColumnIndexB  int `json:"-"`
}

// String renders the match as "a.col = b.col (score N)".
func (m ColumnPairMatch) String() string {
	return fmt.Sprintf("%s.%s = %s.%s (score %d)", m.DatasetA, m.ColumnA, m.DatasetB, m.ColumnB, m.Score)
}

// KeyPair is a caller-supplied join key between two named datasets.
type KeyPair struct {
	File1 string `json:"file1"`
	Col1  string `json:"col1"`
	File2 string `json:"file2"`
	Col2  string `json:"col2"`
}

// UnmarshalJSON accepts numeric or boolean JSON values for any field,
// since spreadsheet headers such as 2024 are often sent unquoted.
func (k *KeyPair) UnmarshalJSON(data []byte) error {
	var raw struct {
		File1 json.RawMessage `json:"file1"`
		Col1  json.RawMessage `json:"col1"`
		File2 json.RawMessage `json:"file2"`
		Col2  json.RawMessage `json:"col2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.File1 = jsonutil.FlexibleStringValue(raw.File1)
	k.Col1 = jsonutil.FlexibleStringValue(raw.Col1)
	k.File2 = jsonutil.FlexibleStringValue(raw.File2)
	k.Col2 = jsonutil.FlexibleStringValue(raw.Col2)
	return nil
}

// String renders the pair as "file1.col1 = file2.col2".
func (k KeyPair) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", k.File1, k.Col1, k.File2, k.Col2)
}

// JoinPlanStep joins RightDataset into the accumulated result.
// LeftDataset is always already part of the result when the step runs.
type JoinPlanStep struct {
	LeftDataset  string `json:"left_dataset"`
	LeftColumn   string `json:"left_column"`
	RightDataset string `json:"right_dataset"`
	RightColumn  string `json:"right_column"`

	LeftIndex  int `json:"-"`
	RightIndex int `json:"-"`
}

// String renders the step as "left.col -> right.col".
func (s JoinPlanStep) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", s.LeftDataset, s.LeftColumn, s.RightDataset, s.RightColumn)
}

// JoinPlan is an ordered, cycle-free sequence of join steps.
type JoinPlan struct {
	Mode  JoinMode       `json:"mode"`
	Steps []JoinPlanStep `json:"steps"`
	// Skipped holds notes for key pairs the planner could not act on, in input order.
	Skipped []string `json:"skipped,omitempty"`
	// Unjoined explains, by dataset index, why a dataset has no step.
	Unjoined map[int]string `json:"-"`
}

// RightSides returns the dataset indexes joined by the plan.
func (p *JoinPlan) RightSides() map[int]bool {
	out := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		out[s.RightIndex] = true
	}
	return out
}

// MergedTable is the result of executing a join plan.
// Column names are unique.
type MergedTable struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Preview returns at most n rows.
func (t *MergedTable) Preview(n int) []Row {
	if n < 0 || n >= len(t.Rows) {
		return t.Rows
	}
	return t.Rows[:n]
}
