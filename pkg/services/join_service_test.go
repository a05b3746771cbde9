package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/metrics"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

type recordedMetric struct {
	name   string
	value  float64
	labels metrics.Labels
}

type recordingBackend struct {
	mu       sync.Mutex
	counters []recordedMetric
	samples  []recordedMetric
}

func (r *recordingBackend) IncCounter(name string, delta float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, recordedMetric{name, delta, labels})
}

func (r *recordingBackend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, recordedMetric{name, value, labels})
}

func (r *recordingBackend) counter(name string, labels metrics.Labels) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0.0
	for _, c := range r.counters {
		if c.name == name && assert.ObjectsAreEqual(labels, c.labels) {
			total += c.value
		}
	}
	return total
}

func newTestJoinService(limits JoinLimits) (JoinService, *recordingBackend) {
	backend := &recordingBackend{}
	return NewJoinService(limits, backend, zap.NewNop()), backend
}

func TestJoinService_InspectMatches(t *testing.T) {
	svc, backend := newTestJoinService(JoinLimits{TopMatches: 10})

	matches, err := svc.InspectMatches(context.Background(), regionsAndSales())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.ColumnPairMatch{
		DatasetA: "A", ColumnA: "id", DatasetB: "B", ColumnB: "id", Score: 2,
		DatasetIndexA: 0, DatasetIndexB: 1,
	}, matches[0])
	assert.Equal(t, 1.0, backend.counter(metrics.JoinRequestsTotal, metrics.Labels{"operation": "inspect", "status": "ok"}))
}

func TestJoinService_InspectMatches_TopTen(t *testing.T) {
	svc, _ := newTestJoinService(JoinLimits{TopMatches: 10})

	cols := []string{"a", "b", "c", "d"}
	row := models.Row{"a": "x", "b": "x", "c": "x", "d": "x"}
	datasets := []*models.Dataset{dataset("L", cols, row), dataset("R", cols, row)}

	matches, err := svc.InspectMatches(context.Background(), datasets)
	require.NoError(t, err)
	assert.Len(t, matches, 10)
}

func TestJoinService_InspectMatches_EmptyIsNotNil(t *testing.T) {
	svc, _ := newTestJoinService(JoinLimits{TopMatches: 10})

	a := dataset("A", []string{"id"}, models.Row{"id": 1})
	b := dataset("B", []string{"id"}, models.Row{"id": 2})
	matches, err := svc.InspectMatches(context.Background(), []*models.Dataset{a, b})
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestJoinService_Join_Auto(t *testing.T) {
	svc, backend := newTestJoinService(JoinLimits{})

	outcome, err := svc.Join(context.Background(), regionsAndSales(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.JoinModeAuto, outcome.Plan.Mode)
	assert.Len(t, outcome.Table.Rows, 3)
	assert.Equal(t, []string{"Joined B on A.id = B.id (2 of 2 rows matched)"}, outcome.Summary)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", outcome.RunID.String())
	assert.Equal(t, 1.0, backend.counter(metrics.JoinStepsTotal, metrics.Labels{"outcome": "applied"}))
	assert.Equal(t, 1.0, backend.counter(metrics.JoinRequestsTotal, metrics.Labels{"operation": "join", "status": "ok"}))
}

func TestJoinService_Join_NoSharedValues(t *testing.T) {
	svc, _ := newTestJoinService(JoinLimits{})
	a := dataset("A", []string{"id"}, models.Row{"id": 1}, models.Row{"id": 2})
	b := dataset("B", []string{"code"}, models.Row{"code": "z"})

	outcome, err := svc.Join(context.Background(), []*models.Dataset{a, b}, nil)
	require.NoError(t, err)

	assert.Equal(t, []models.Row{{"id": 1}, {"id": 2}}, outcome.Table.Rows)
	assert.Equal(t, []string{"Dataset B skipped: no key found, no column shares values with another dataset"}, outcome.Summary)
}

func TestJoinService_Join_Explicit(t *testing.T) {
	svc, _ := newTestJoinService(JoinLimits{})

	outcome, err := svc.Join(context.Background(), regionsAndSales(), []models.KeyPair{
		{File1: "A", Col1: "region", File2: "B", Col2: "sales"},
		{File1: "A", Col1: "id", File2: "B", Col2: "id"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.JoinModeExplicit, outcome.Plan.Mode)
	require.Len(t, outcome.Table.Rows, 2, "region never equals sales")
	assert.Nil(t, outcome.Table.Rows[0]["sales"])
	assert.Equal(t, []string{
		"Joined B on A.region = B.sales (0 of 2 rows matched)",
		"Skipped key A.id = B.id: both datasets are already joined",
	}, outcome.Summary)
}

func TestJoinService_Join_InsufficientDatasets(t *testing.T) {
	svc, backend := newTestJoinService(JoinLimits{})

	_, err := svc.Join(context.Background(), regionsAndSales()[:1], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientDatasets))
	assert.Equal(t, 1.0, backend.counter(metrics.JoinRequestsTotal, metrics.Labels{"operation": "join", "status": "rejected"}))
}

func TestJoinService_ScoringBudgetDegrades(t *testing.T) {
	tests := []struct {
		name        string
		keys        []models.KeyPair
		wantRows    int
		wantSummary []string
		wantStatus  string
	}{
		{
			name:     "auto mode keeps the first dataset",
			wantRows: 2,
			wantSummary: []string{
				"Key inference skipped: column scoring budget exceeded",
				"Dataset B skipped: no key found, datasets are too large to compare for join keys",
			},
			wantStatus: "degraded",
		},
		{
			name:        "explicit keys need no scoring",
			keys:        []models.KeyPair{{File1: "A", Col1: "id", File2: "B", Col2: "id"}},
			wantRows:    3,
			wantSummary: []string{"Joined B on A.id = B.id (2 of 2 rows matched)"},
			wantStatus:  "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, backend := newTestJoinService(JoinLimits{MaxScoringWork: 1})

			outcome, err := svc.Join(context.Background(), regionsAndSales(), tt.keys)
			require.NoError(t, err)
			assert.Len(t, outcome.Table.Rows, tt.wantRows)
			require.Len(t, outcome.Summary, len(tt.wantSummary))
			for i, want := range tt.wantSummary {
				assert.True(t, strings.HasPrefix(outcome.Summary[i], want), "summary[%d] = %q", i, outcome.Summary[i])
			}
			assert.Equal(t, 1.0, backend.counter(metrics.JoinRequestsTotal, metrics.Labels{"operation": "join", "status": tt.wantStatus}))
		})
	}
}

func TestJoinService_RowCapDoesNotReplan(t *testing.T) {
	a := dataset("A", []string{"k", "n"},
		models.Row{"k": 1, "n": "p"},
		models.Row{"k": 2, "n": "q"},
	)
	b := dataset("B", []string{"k", "n"},
		models.Row{"k": 1, "n": "p"},
		models.Row{"k": 1, "n": "x"},
		models.Row{"k": 2, "n": "y"},
		models.Row{"k": 2, "n": "z"},
	)
	svc, _ := newTestJoinService(JoinLimits{MaxOutputRows: 3})

	outcome, err := svc.Join(context.Background(), []*models.Dataset{a, b}, nil)
	require.NoError(t, err)

	require.Len(t, outcome.Plan.Steps, 1, "the lower-ranked n key is never planned")
	assert.Equal(t, "k", outcome.Plan.Steps[0].LeftColumn)
	assert.Len(t, outcome.Table.Rows, 2)
	assert.Equal(t, []string{"Skipped A.k -> B.k: join would produce 4 rows (limit 3)"}, outcome.Summary)
}

func TestJoinService_InspectMatches_ScoringBudget(t *testing.T) {
	svc, backend := newTestJoinService(JoinLimits{MaxScoringWork: 1, TopMatches: 10})

	matches, err := svc.InspectMatches(context.Background(), regionsAndSales())
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
	assert.Equal(t, 1.0, backend.counter(metrics.JoinRequestsTotal, metrics.Labels{"operation": "inspect", "status": "degraded"}))
}

func TestNormalizeDatasetNames(t *testing.T) {
	in := []*models.Dataset{
		{Name: "sales"},
		{Name: "sales"},
		{Name: ""},
		{Name: "sales_2"},
	}

	out := NormalizeDatasetNames(in)

	var names []string
	for _, ds := range out {
		names = append(names, ds.Name)
	}
	assert.Equal(t, []string{"sales", "sales_3", "dataset_3", "sales_2"}, names)
	assert.Same(t, in[0], out[0], "unchanged datasets are not copied")
	assert.Equal(t, "sales", in[1].Name, "input is not mutated")
}

func TestJoinService_LargeIntegerIDsStayDistinct(t *testing.T) {
	svc, _ := newTestJoinService(JoinLimits{TopMatches: 10})
	datasets, err := ResolveDatasets(context.Background(), []DatasetSpec{
		{Name: "A", Rows: []byte(`[{"id": 9007199254740993}]`)},
		{Name: "B", Rows: []byte(`[{"id": 9007199254740992, "v": "x"}]`)},
	}, nil)
	require.NoError(t, err)

	matches, err := svc.InspectMatches(context.Background(), datasets)
	require.NoError(t, err)
	assert.Empty(t, matches, "ids one apart above 2^53 must not match")

	outcome, err := svc.Join(context.Background(), datasets, nil)
	require.NoError(t, err)
	require.Len(t, outcome.Table.Rows, 1)
	assert.Equal(t, int64(9007199254740993), outcome.Table.Rows[0]["id"])
	assert.Equal(t, []string{"Dataset B skipped: no key found, no column shares values with another dataset"}, outcome.Summary)
}
