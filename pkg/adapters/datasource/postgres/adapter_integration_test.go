//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/testhelpers"
)

func TestAdapter_ReadTable(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	adapter, err := NewAdapter(ctx, testDB.ConnStr, zap.NewNop())
	require.NoError(t, err)
	defer adapter.Close()

	require.NoError(t, adapter.TestConnection(ctx))

	ds, err := adapter.ReadTable(ctx, "sales.orders", 2)
	require.NoError(t, err)

	assert.Equal(t, "sales.orders", ds.Name)
	assert.Equal(t, []string{"order_id", "id", "amount", "placed_at"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ds.Rows[0]["order_id"])
	assert.Equal(t, int32(1), ds.Rows[0]["id"])
	assert.Equal(t, 10.0, ds.Rows[0]["amount"])
	assert.Equal(t, 20.5, ds.Rows[1]["amount"])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ds.Rows[0]["placed_at"])
	assert.Nil(t, ds.Rows[1]["placed_at"])
}

func TestAdapter_ReadMissingTable(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	adapter, err := NewAdapter(ctx, testDB.ConnStr, zap.NewNop())
	require.NoError(t, err)
	defer adapter.Close()

	_, err = adapter.ReadTable(ctx, "nope", 0)
	assert.Error(t, err)
}
