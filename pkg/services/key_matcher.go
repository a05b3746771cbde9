package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// valueSet holds the distinct comparison keys of one column.
type valueSet map[models.ValueKey]struct{}

// KeyMatcher scores every column pair across every dataset pair by the number
// of distinct values the two columns share.
type KeyMatcher struct {
	// maxWork caps the estimated comparison count; 0 disables the cap.
	maxWork int
	logger  *zap.Logger
}

// NewKeyMatcher creates a key matcher.
func NewKeyMatcher(maxWork int, logger *zap.Logger) *KeyMatcher {
	return &KeyMatcher{
		maxWork: maxWork,
		logger:  logger.Named("key-matcher"),
	}
}

// MatchColumns returns every column pair with a positive overlap score, ranked by
// score descending. Ties keep input order: earlier dataset pair first, then earlier
// column in the first dataset, then earlier column in the second.
//
// Datasets without rows or columns contribute nothing. The only error is
// apperrors.ErrScoringBudgetExceeded.
func (m *KeyMatcher) MatchColumns(datasets []*models.Dataset) ([]models.ColumnPairMatch, error) {
	sets := make([][]valueSet, len(datasets))
	for i, ds := range datasets {
		sets[i] = distinctValues(ds)
	}

	if m.maxWork > 0 {
		if work := estimateWork(sets); work > m.maxWork {
			return nil, fmt.Errorf("%w: %d comparisons needed, limit is %d", apperrors.ErrScoringBudgetExceeded, work, m.maxWork)
		}
	}

	var matches []models.ColumnPairMatch
	for i := 0; i < len(datasets); i++ {
		for j := i + 1; j < len(datasets); j++ {
			for ca, colA := range datasets[i].Columns {
				for cb, colB := range datasets[j].Columns {
					score := overlap(sets[i][ca], sets[j][cb])
					if score == 0 {
						continue
					}
					matches = append(matches, models.ColumnPairMatch{
						DatasetA:      datasets[i].Name,
						ColumnA:       colA,
						DatasetB:      datasets[j].Name,
						ColumnB:       colB,
						Score:         score,
						DatasetIndexA: i,
						DatasetIndexB: j,
						ColumnIndexA:  ca,
						ColumnIndexB:  cb,
					})
				}
			}
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return rankBefore(matches[a], matches[b])
	})

	m.logger.Debug("Scored column pairs",
		zap.Int("datasets", len(datasets)),
		zap.Int("matches", len(matches)))

	return matches, nil
}

// TopMatches returns the first k ranked matches. k <= 0 returns all of them.
func TopMatches(matches []models.ColumnPairMatch, k int) []models.ColumnPairMatch {
	if k <= 0 || len(matches) <= k {
		return matches
	}
	return matches[:k]
}

func rankBefore(a, b models.ColumnPairMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DatasetIndexA != b.DatasetIndexA {
		return a.DatasetIndexA < b.DatasetIndexA
	}
	if a.DatasetIndexB != b.DatasetIndexB {
		return a.DatasetIndexB < b.DatasetIndexB
	}
	if a.ColumnIndexA != b.ColumnIndexA {
		return a.ColumnIndexA < b.ColumnIndexA
	}
	return a.ColumnIndexB < b.ColumnIndexB
}

// distinctValues builds one value set per declared column.
// Cells that can never match (nil, NaN, nested values) are left out.
func distinctValues(ds *models.Dataset) []valueSet {
	out := make([]valueSet, len(ds.Columns))
	for c, col := range ds.Columns {
		set := make(valueSet)
		for _, row := range ds.Rows {
			if key, ok := models.KeyOf(row[col]); ok {
				set[key] = struct{}{}
			}
		}
		out[c] = set
	}
	return out
}

// estimateWork sums the smaller set size over every cross-dataset column pair,
// which is the number of lookups overlap performs.
func estimateWork(sets [][]valueSet) int {
	work := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			for _, a := range sets[i] {
				for _, b := range sets[j] {
					work += min(len(a), len(b))
				}
			}
		}
	}
	return work
}

// overlap counts keys present in both sets. It walks the smaller set, so the
// result does not depend on argument order.
func overlap(a, b valueSet) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
