package services

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// ManualJoinRequired is the provenance entry used when nothing else was recorded.
const ManualJoinRequired = "Manual join required"

// defaultSkipReason explains an unjoined dataset when the plan gives no reason.
const defaultSkipReason = "no key found"

// ExecutionReport is the outcome of running a join plan.
type ExecutionReport struct {
	Table      *models.MergedTable
	Provenance []string
	Applied    int
	Skipped    int
}

// JoinExecutor applies a join plan as a sequence of left outer joins.
type JoinExecutor struct {
	// maxOutputRows caps the merged table size; 0 disables the cap.
	maxOutputRows int
	logger        *zap.Logger
}

// NewJoinExecutor creates a join executor.
func NewJoinExecutor(maxOutputRows int, logger *zap.Logger) *JoinExecutor {
	return &JoinExecutor{
		maxOutputRows: maxOutputRows,
		logger:        logger.Named("join-executor"),
	}
}

// columnRef addresses a source column by dataset index.
type columnRef struct {
	dataset int
	column  string
}

// mergeState is the accumulating result of one Execute call.
type mergeState struct {
	columns []string
	taken   map[string]bool
	// source maps a dataset column to its name in the merged table.
	source map[columnRef]string
	rows   []models.Row
	joined map[int]bool
}

// Execute starts from a copy of the first dataset and left-joins each step's right
// dataset into it. A left row is repeated once per matching right row; a left row
// without a match is kept once with the right columns set to nil.
//
// Provenance lists applied and skipped steps, then the plan's skipped notes, then
// one entry per dataset that was never joined.
func (e *JoinExecutor) Execute(datasets []*models.Dataset, plan *models.JoinPlan) (*ExecutionReport, error) {
	if len(datasets) < 2 {
		return nil, apperrors.ErrInsufficientDatasets
	}

	state := newMergeState(datasets[0])
	report := &ExecutionReport{}
	// Datasets whose step was skipped already have a provenance entry.
	stepSkipped := make(map[int]bool)

	for _, step := range plan.Steps {
		if step.LeftIndex < 0 || step.LeftIndex >= len(datasets) || step.RightIndex < 0 || step.RightIndex >= len(datasets) {
			return nil, fmt.Errorf("join step %s references a dataset outside the input", step)
		}

		if !state.joined[step.LeftIndex] {
			stepSkipped[step.RightIndex] = true
			report.Skipped++
			report.Provenance = append(report.Provenance,
				fmt.Sprintf("Skipped %s: %s was not joined", step, step.LeftDataset))
			continue
		}
		if state.joined[step.RightIndex] {
			report.Skipped++
			report.Provenance = append(report.Provenance,
				fmt.Sprintf("Skipped %s: %s is already joined", step, step.RightDataset))
			continue
		}

		right := datasets[step.RightIndex]
		leftCol := state.source[columnRef{step.LeftIndex, step.LeftColumn}]
		index := buildKeyIndex(right, step.RightColumn)

		size := state.joinedSize(leftCol, index)
		// The plan is fixed: a dataset skipped here is not retried through another key.
		if e.maxOutputRows > 0 && size > e.maxOutputRows {
			stepSkipped[step.RightIndex] = true
			report.Skipped++
			report.Provenance = append(report.Provenance,
				fmt.Sprintf("Skipped %s: join would produce %d rows (limit %d)", step, size, e.maxOutputRows))
			e.logger.Warn("Join step exceeds row limit",
				zap.String("step", step.String()),
				zap.Int("rows", size),
				zap.Int("limit", e.maxOutputRows))
			continue
		}

		leftRows := len(state.rows)
		matched := state.leftJoin(step, leftCol, right, index, size)
		report.Applied++
		report.Provenance = append(report.Provenance,
			fmt.Sprintf("Joined %s on %s.%s = %s.%s (%d of %d rows matched)",
				step.RightDataset, step.LeftDataset, step.LeftColumn, step.RightDataset, step.RightColumn,
				matched, leftRows))
	}

	report.Provenance = append(report.Provenance, plan.Skipped...)

	for i := 1; i < len(datasets); i++ {
		if state.joined[i] || stepSkipped[i] {
			continue
		}
		reason := plan.Unjoined[i]
		if reason == "" {
			reason = defaultSkipReason
		}
		report.Provenance = append(report.Provenance,
			fmt.Sprintf("Dataset %s skipped: %s", datasets[i].Name, reason))
	}

	if len(report.Provenance) == 0 {
		report.Provenance = []string{ManualJoinRequired}
	}

	report.Table = &models.MergedTable{Columns: state.columns, Rows: state.rows}
	return report, nil
}

func newMergeState(base *models.Dataset) *mergeState {
	s := &mergeState{
		taken:  make(map[string]bool, len(base.Columns)),
		source: make(map[columnRef]string, len(base.Columns)),
		rows:   make([]models.Row, len(base.Rows)),
		joined: map[int]bool{0: true},
	}
	for _, col := range base.Columns {
		name := s.claim(col)
		s.source[columnRef{0, col}] = name
	}
	for i, r := range base.Rows {
		row := make(models.Row, len(s.columns))
		for _, col := range base.Columns {
			row[s.source[columnRef{0, col}]] = r[col]
		}
		s.rows[i] = row
	}
	return s
}

// claim reserves a unique column name, suffixing _2, _3, ... on collision.
func (s *mergeState) claim(name string) string {
	unique := name
	for n := 2; s.taken[unique]; n++ {
		unique = name + "_" + strconv.Itoa(n)
	}
	s.taken[unique] = true
	s.columns = append(s.columns, unique)
	return unique
}

// buildKeyIndex maps each key value of column to the rows holding it, in row order.
func buildKeyIndex(ds *models.Dataset, column string) map[models.ValueKey][]int {
	index := make(map[models.ValueKey][]int)
	for i, row := range ds.Rows {
		if key, ok := models.KeyOf(row[column]); ok {
			index[key] = append(index[key], i)
		}
	}
	return index
}

// joinedSize returns the row count a left join against index would produce.
func (s *mergeState) joinedSize(leftCol string, index map[models.ValueKey][]int) int {
	size := 0
	for _, row := range s.rows {
		n := 0
		if key, ok := models.KeyOf(row[leftCol]); ok {
			n = len(index[key])
		}
		size += max(n, 1)
	}
	return size
}

// leftJoin merges right into the state and returns how many left rows found a match.
func (s *mergeState) leftJoin(step models.JoinPlanStep, leftCol string, right *models.Dataset, index map[models.ValueKey][]int, size int) int {
	// The right key column folds into the left one when both carry the same name.
	folded := -1
	rightNames := make([]string, len(right.Columns))
	for i, col := range right.Columns {
		if col == step.RightColumn && col == leftCol {
			folded = i
			rightNames[i] = leftCol
		} else {
			rightNames[i] = s.claim(col)
		}
		s.source[columnRef{step.RightIndex, col}] = rightNames[i]
	}

	out := make([]models.Row, 0, size)
	matched := 0
	for _, left := range s.rows {
		var hits []int
		if key, ok := models.KeyOf(left[leftCol]); ok {
			hits = index[key]
		}
		if len(hits) == 0 {
			row := copyRow(left, len(s.columns))
			for i, name := range rightNames {
				if i != folded {
					row[name] = nil
				}
			}
			out = append(out, row)
			continue
		}

		matched++
		for _, h := range hits {
			row := copyRow(left, len(s.columns))
			for i, col := range right.Columns {
				if i != folded {
					row[rightNames[i]] = right.Rows[h][col]
				}
			}
			out = append(out, row)
		}
	}

	s.rows = out
	s.joined[step.RightIndex] = true
	return matched
}

func copyRow(r models.Row, capacity int) models.Row {
	row := make(models.Row, capacity)
	for k, v := range r {
		row[k] = v
	}
	return row
}
