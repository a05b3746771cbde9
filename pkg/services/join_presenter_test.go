package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

func TestPresentJoin(t *testing.T) {
	var rows []models.Row
	for i := 0; i < 8; i++ {
		rows = append(rows, models.Row{"id": i})
	}
	a := dataset("A", []string{"id"}, rows...)
	b := dataset("B", []string{"id", "v"}, models.Row{"id": 3, "v": "x"})

	outcome, err := NewJoinService(JoinLimits{}, nil, zap.NewNop()).Join(context.Background(), []*models.Dataset{a, b}, nil)
	require.NoError(t, err)

	resp := PresentJoin(outcome, 5)
	assert.Len(t, resp.Data, 5)
	assert.Equal(t, 8, resp.RowCount)
	assert.Equal(t, []string{"id", "v"}, resp.Columns)
	assert.Equal(t, []string{"Joined B on A.id = B.id (1 of 8 rows matched)"}, resp.JoinSummary)

	first := resp.Data[0]
	id, _ := first.Get("id")
	assert.Equal(t, 0, id)
}
