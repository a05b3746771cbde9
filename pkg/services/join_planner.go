package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// JoinPlanner turns ranked matches or caller key pairs into a join plan.
// The first dataset is always the starting table. A dataset becomes the right
// side of at most one step and never joins itself.
type JoinPlanner struct {
	logger *zap.Logger
}

// NewJoinPlanner creates a join planner.
func NewJoinPlanner(logger *zap.Logger) *JoinPlanner {
	return &JoinPlanner{logger: logger.Named("join-planner")}
}

// PlanAuto repeatedly picks the best-ranked match that links a joined dataset to
// one not yet joined. matches must be ranked as returned by KeyMatcher.MatchColumns.
// Datasets with no positive-overlap path to the first dataset are left out.
func (p *JoinPlanner) PlanAuto(datasets []*models.Dataset, matches []models.ColumnPairMatch) *models.JoinPlan {
	plan := &models.JoinPlan{Mode: models.JoinModeAuto}
	if len(datasets) == 0 {
		return plan
	}

	used := map[int]bool{0: true}
	for len(used) < len(datasets) {
		next, ok := nextAutoMatch(matches, used)
		if !ok {
			break
		}

		var step models.JoinPlanStep
		if used[next.DatasetIndexA] {
			step = newStep(datasets, next.DatasetIndexA, next.ColumnA, next.DatasetIndexB, next.ColumnB)
		} else {
			step = newStep(datasets, next.DatasetIndexB, next.ColumnB, next.DatasetIndexA, next.ColumnA)
		}
		// Marked before execution, so a step later dropped by the row cap is not replaced.
		used[step.RightIndex] = true
		plan.Steps = append(plan.Steps, step)

		p.logger.Debug("Planned join step",
			zap.String("step", step.String()),
			zap.Int("score", next.Score))
	}

	return plan
}

// nextAutoMatch returns the first match with exactly one side already used.
func nextAutoMatch(matches []models.ColumnPairMatch, used map[int]bool) (models.ColumnPairMatch, bool) {
	for _, m := range matches {
		if m.Score <= 0 {
			continue
		}
		if used[m.DatasetIndexA] != used[m.DatasetIndexB] {
			return m, true
		}
	}
	return models.ColumnPairMatch{}, false
}

// PlanExplicit processes key pairs in the order given. A pair becomes a step only
// when exactly one of its datasets is already joined; every other pair is noted
// in plan.Skipped and processing continues.
func (p *JoinPlanner) PlanExplicit(datasets []*models.Dataset, pairs []models.KeyPair) *models.JoinPlan {
	plan := &models.JoinPlan{Mode: models.JoinModeExplicit}
	if len(datasets) == 0 {
		return plan
	}

	index := make(map[string]int, len(datasets))
	for i, ds := range datasets {
		if _, exists := index[ds.Name]; !exists {
			index[ds.Name] = i
		}
	}

	used := map[int]bool{0: true}
	skip := func(pair models.KeyPair, reason string) {
		note := fmt.Sprintf("Skipped key %s: %s", pair, reason)
		plan.Skipped = append(plan.Skipped, note)
		p.logger.Debug("Skipped key pair", zap.String("pair", pair.String()), zap.String("reason", reason))
	}

	for _, pair := range pairs {
		a, okA := index[pair.File1]
		b, okB := index[pair.File2]
		switch {
		case !okA:
			skip(pair, fmt.Sprintf("unknown dataset %q", pair.File1))
			continue
		case !okB:
			skip(pair, fmt.Sprintf("unknown dataset %q", pair.File2))
			continue
		case a == b:
			skip(pair, "cannot join a dataset to itself")
			continue
		case !datasets[a].HasColumn(pair.Col1):
			skip(pair, fmt.Sprintf("column %q not found in %s", pair.Col1, pair.File1))
			continue
		case !datasets[b].HasColumn(pair.Col2):
			skip(pair, fmt.Sprintf("column %q not found in %s", pair.Col2, pair.File2))
			continue
		case used[a] && used[b]:
			skip(pair, "both datasets are already joined")
			continue
		case !used[a] && !used[b]:
			skip(pair, "neither dataset is joined yet")
			continue
		}

		var step models.JoinPlanStep
		if used[a] {
			step = newStep(datasets, a, pair.Col1, b, pair.Col2)
		} else {
			step = newStep(datasets, b, pair.Col2, a, pair.Col1)
		}
		used[step.RightIndex] = true
		plan.Steps = append(plan.Steps, step)
	}

	return plan
}

func newStep(datasets []*models.Dataset, left int, leftCol string, right int, rightCol string) models.JoinPlanStep {
	return models.JoinPlanStep{
		LeftDataset:  datasets[left].Name,
		LeftColumn:   leftCol,
		RightDataset: datasets[right].Name,
		RightColumn:  rightCol,
		LeftIndex:    left,
		RightIndex:   right,
	}
}
