package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// topValueCount is how many frequent values a text column insight lists.
const topValueCount = 3

// ProfileDataset builds the upload summary: the first previewRows rows, the shape,
// and per-column insights. A column is numeric when it has at least one value and
// every non-nil value is a number.
func ProfileDataset(ds *models.Dataset, previewRows int) *models.DatasetProfile {
	preview := ds.Rows
	if previewRows >= 0 && len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	insights := orderedmap.New[string, models.ColumnInsight]()
	for _, col := range ds.Columns {
		if nums, ok := numericValues(ds, col); ok {
			insights.Set(col, numericInsight(nums))
			continue
		}
		insights.Set(col, models.ColumnInsight{Top: topValues(ds, col, topValueCount)})
	}

	return &models.DatasetProfile{
		Headers: ds.Columns,
		Data:    models.OrderRows(ds.Columns, preview),
		Summary: models.DatasetSummary{
			Rows:    ds.RowCount(),
			Columns: ds.Columns,
		},
		Insights: insights,
	}
}

func numericValues(ds *models.Dataset, col string) ([]float64, bool) {
	var out []float64
	for _, row := range ds.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, len(out) > 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func numericInsight(nums []float64) models.ColumnInsight {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, n := range sorted {
		sum += n
	}
	avg := sum / float64(len(sorted))

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	minV, maxV := sorted[0], sorted[len(sorted)-1]
	return models.ColumnInsight{
		Min:    &minV,
		Max:    &maxV,
		Avg:    &avg,
		Sum:    &sum,
		Median: &median,
	}
}

// topValues counts non-nil values, most frequent first; ties keep first-seen order.
func topValues(ds *models.Dataset, col string, k int) *orderedmap.OrderedMap[string, int] {
	counts := make(map[string]int)
	var order []string
	for _, row := range ds.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if _, ok := counts[s]; !ok {
			order = append(order, s)
		}
		counts[s]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > k {
		order = order[:k]
	}

	top := orderedmap.New[string, int]()
	for _, s := range order {
		top.Set(s, counts[s])
	}
	return top
}
