package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/metrics"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// JoinLimits bounds the work done for one request. Zero disables a limit.
type JoinLimits struct {
	MaxScoringWork int
	MaxOutputRows  int
	TopMatches     int
}

// JoinOutcome is the result of a join request.
type JoinOutcome struct {
	RunID   uuid.UUID
	Plan    *models.JoinPlan
	Table   *models.MergedTable
	Summary []string
}

// JoinService provides key inspection and join execution over request-scoped datasets.
type JoinService interface {
	// InspectMatches returns the best-scoring column pairs, at most JoinLimits.TopMatches.
	InspectMatches(ctx context.Context, datasets []*models.Dataset) ([]models.ColumnPairMatch, error)

	// Join plans and executes a join. With no keys the plan is inferred from value
	// overlap; otherwise keys are applied in order.
	// Returns apperrors.ErrInsufficientDatasets for fewer than 2 datasets.
	Join(ctx context.Context, datasets []*models.Dataset, keys []models.KeyPair) (*JoinOutcome, error)
}

type joinService struct {
	matcher  *KeyMatcher
	planner  *JoinPlanner
	executor *JoinExecutor
	limits   JoinLimits
	metrics  metrics.Backend
	logger   *zap.Logger
}

// NewJoinService creates a join service.
func NewJoinService(limits JoinLimits, backend metrics.Backend, logger *zap.Logger) JoinService {
	if backend == nil {
		backend = metrics.Nop{}
	}
	return &joinService{
		matcher:  NewKeyMatcher(limits.MaxScoringWork, logger),
		planner:  NewJoinPlanner(logger),
		executor: NewJoinExecutor(limits.MaxOutputRows, logger),
		limits:   limits,
		metrics:  backend,
		logger:   logger.Named("join"),
	}
}

var _ JoinService = (*joinService)(nil)

// budgetSkipReason explains datasets left out after key inference hit the scoring budget.
const budgetSkipReason = "no key found, datasets are too large to compare for join keys"

func (s *joinService) InspectMatches(ctx context.Context, datasets []*models.Dataset) ([]models.ColumnPairMatch, error) {
	start := time.Now()
	datasets = NormalizeDatasetNames(datasets)

	matches, err := s.matcher.MatchColumns(datasets)
	if errors.Is(err, apperrors.ErrScoringBudgetExceeded) {
		s.logger.Warn("Key inspection skipped", zap.Error(err))
		s.record("inspect", start, err)
		return []models.ColumnPairMatch{}, nil
	}
	s.record("inspect", start, err)
	if err != nil {
		return nil, err
	}

	top := TopMatches(matches, s.limits.TopMatches)
	if top == nil {
		top = []models.ColumnPairMatch{}
	}
	return top, nil
}

func (s *joinService) Join(ctx context.Context, datasets []*models.Dataset, keys []models.KeyPair) (*JoinOutcome, error) {
	start := time.Now()
	runID := uuid.New()
	logger := s.logger.With(zap.String("run_id", runID.String()))

	if len(datasets) < 2 {
		s.record("join", start, apperrors.ErrInsufficientDatasets)
		return nil, apperrors.ErrInsufficientDatasets
	}
	datasets = NormalizeDatasetNames(datasets)

	var plan *models.JoinPlan
	var degraded error
	if len(keys) > 0 {
		plan = s.planner.PlanExplicit(datasets, keys)
	} else {
		matches, err := s.matcher.MatchColumns(datasets)
		switch {
		case errors.Is(err, apperrors.ErrScoringBudgetExceeded):
			// Degrade to the first dataset alone; only input errors abort a join.
			logger.Warn("Key inference skipped", zap.Error(err))
			degraded = err
			plan = s.planner.PlanAuto(datasets, nil)
			plan.Skipped = append(plan.Skipped, fmt.Sprintf("Key inference skipped: %v", err))
			plan.Unjoined = make(map[int]string, len(datasets)-1)
			for i := 1; i < len(datasets); i++ {
				plan.Unjoined[i] = budgetSkipReason
			}
		case err != nil:
			s.record("join", start, err)
			return nil, err
		default:
			plan = s.planner.PlanAuto(datasets, matches)

			graph := BuildDatasetGraph(datasets, matches)
			components, islands := graph.FindConnectedComponents()
			LogConnectivity(len(matches), components, islands, logger)
			plan.Unjoined = graph.UnjoinedReasons(datasets)
		}
	}

	report, err := s.executor.Execute(datasets, plan)
	if err != nil {
		s.record("join", start, err)
		return nil, fmt.Errorf("execute join plan: %w", err)
	}

	s.metrics.IncCounter(metrics.JoinStepsTotal, float64(report.Applied), metrics.Labels{"outcome": "applied"})
	s.metrics.IncCounter(metrics.JoinStepsTotal, float64(report.Skipped+len(plan.Skipped)), metrics.Labels{"outcome": "skipped"})
	s.metrics.ObserveHistogram(metrics.JoinOutputRows, float64(len(report.Table.Rows)), nil)
	s.record("join", start, degraded)

	logger.Info("Join completed",
		zap.String("mode", string(plan.Mode)),
		zap.Int("datasets", len(datasets)),
		zap.Int("steps_applied", report.Applied),
		zap.Int("rows", len(report.Table.Rows)))

	return &JoinOutcome{
		RunID:   runID,
		Plan:    plan,
		Table:   report.Table,
		Summary: report.Provenance,
	}, nil
}

func (s *joinService) record(operation string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInsufficientDatasets):
		status = "rejected"
	case errors.Is(err, apperrors.ErrScoringBudgetExceeded):
		status = "degraded"
	default:
		status = "error"
	}
	s.metrics.IncCounter(metrics.JoinRequestsTotal, 1, metrics.Labels{"operation": operation, "status": status})
	s.metrics.ObserveHistogram(metrics.JoinDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"operation": operation})
}

// NormalizeDatasetNames returns datasets with unique, non-empty names. A blank name
// becomes "dataset_<n>" (1-based position) and a repeated name gets a _2, _3, ...
// suffix. Datasets that need no change are returned as-is.
func NormalizeDatasetNames(datasets []*models.Dataset) []*models.Dataset {
	seen := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		seen[ds.Name] = true
	}

	out := make([]*models.Dataset, len(datasets))
	taken := make(map[string]bool, len(datasets))
	for i, ds := range datasets {
		name := ds.Name
		if name == "" {
			name = "dataset_" + strconv.Itoa(i+1)
		}
		if taken[name] {
			base := name
			for n := 2; taken[name] || (seen[name] && name != ds.Name); n++ {
				name = base + "_" + strconv.Itoa(n)
			}
		}
		taken[name] = true

		if name == ds.Name {
			out[i] = ds
			continue
		}
		renamed := *ds
		renamed.Name = name
		out[i] = &renamed
	}
	return out
}
