package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

type stubTables struct {
	datasets map[string]*models.Dataset
	err      error
}

func (s stubTables) ReadTable(_ context.Context, source, table string, _ int) (*models.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	ds, ok := s.datasets[source+"/"+table]
	if !ok {
		return nil, apperrors.ErrUnknownDatasource
	}
	return ds, nil
}

func newJoinToolServer(tables services.TableSource) *server.MCPServer {
	s := newTestMCPServer()
	RegisterJoinTools(s, &JoinToolDeps{
		Joins:       services.NewJoinService(services.JoinLimits{TopMatches: 10}, nil, zap.NewNop()),
		Tables:      tables,
		PreviewRows: 5,
		Logger:      zap.NewNop(),
	})
	return s
}

func regionsAndSalesArgs() []any {
	return []any{
		map[string]any{"name": "A", "rows": []any{
			map[string]any{"id": 1, "region": "X"},
			map[string]any{"id": 2, "region": "Y"},
		}},
		map[string]any{"name": "B", "rows": []any{
			map[string]any{"id": 1, "sales": 10},
			map[string]any{"id": 2, "sales": 20},
			map[string]any{"id": 2, "sales": 5},
		}},
	}
}

func errorCode(t *testing.T, resp toolCallResponse) string {
	t.Helper()
	require.True(t, resp.Result.IsError, "expected a tool error result")
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &errResp))
	return errResp.Code
}

func TestRegisterJoinTools(t *testing.T) {
	tools := listToolNames(t, newJoinToolServer(nil))

	assert.Contains(t, tools, "inspect_join_keys")
	assert.Contains(t, tools, "join_datasets")
	assert.Contains(t, tools["join_datasets"], "first 5 rows")
}

func TestInspectJoinKeys(t *testing.T) {
	resp := callTool(t, newJoinToolServer(nil), "inspect_join_keys", map[string]any{
		"datasets": regionsAndSalesArgs(),
	})

	require.Nil(t, resp.Error)
	require.False(t, resp.Result.IsError)
	assert.JSONEq(t, `[{"file1": "A", "col1": "id", "file2": "B", "col2": "id", "score": 2}]`, resp.Result.Content[0].Text)
}

func TestJoinDatasets_Auto(t *testing.T) {
	resp := callTool(t, newJoinToolServer(nil), "join_datasets", map[string]any{
		"datasets": regionsAndSalesArgs(),
	})

	require.Nil(t, resp.Error)
	require.False(t, resp.Result.IsError)
	assert.JSONEq(t, `{
		"data": [
			{"id": 1, "region": "X", "sales": 10},
			{"id": 2, "region": "Y", "sales": 20},
			{"id": 2, "region": "Y", "sales": 5}
		],
		"columns": ["id", "region", "sales"],
		"row_count": 3,
		"join_summary": ["Joined B on A.id = B.id (2 of 2 rows matched)"]
	}`, resp.Result.Content[0].Text)
}

func TestJoinDatasets_ExplicitKeysAndColumnOrder(t *testing.T) {
	datasets := regionsAndSalesArgs()
	datasets[0].(map[string]any)["columns"] = []any{"region", "id"}

	resp := callTool(t, newJoinToolServer(nil), "join_datasets", map[string]any{
		"datasets": datasets,
		"keys":     []any{map[string]any{"file1": "A", "col1": "id", "file2": "B", "col2": "id"}},
	})

	require.False(t, resp.Result.IsError)
	var out struct {
		Columns     []string `json:"columns"`
		RowCount    int      `json:"row_count"`
		JoinSummary []string `json:"join_summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	assert.Equal(t, []string{"region", "id", "sales"}, out.Columns)
	assert.Equal(t, 3, out.RowCount)
	assert.Equal(t, []string{"Joined B on A.id = B.id (2 of 2 rows matched)"}, out.JoinSummary)
}

func TestJoinDatasets_DatasourceTables(t *testing.T) {
	tables := stubTables{datasets: map[string]*models.Dataset{
		"crm/public.regions": {Name: "public.regions", Columns: []string{"id", "region"}, Rows: []models.Row{
			{"id": int64(1), "region": "X"},
		}},
	}}

	resp := callTool(t, newJoinToolServer(tables), "join_datasets", map[string]any{
		"datasets": []any{
			map[string]any{"datasource": "crm", "table": "public.regions"},
			map[string]any{"name": "sales", "rows": []any{map[string]any{"id": 1, "amount": 3}}},
		},
	})

	require.False(t, resp.Result.IsError, resp.Result.Content)
	assert.Contains(t, resp.Result.Content[0].Text, `"Joined sales on public.regions.id = sales.id (1 of 1 rows matched)"`)
}

func TestJoinTools_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		tables   services.TableSource
		args     map[string]any
		wantCode string
	}{
		{
			name:     "single dataset",
			tool:     "join_datasets",
			args:     map[string]any{"datasets": regionsAndSalesArgs()[:1]},
			wantCode: "insufficient_datasets",
		},
		{
			name:     "missing datasets",
			tool:     "inspect_join_keys",
			args:     map[string]any{},
			wantCode: "malformed_dataset",
		},
		{
			name:     "datasets not a list",
			tool:     "join_datasets",
			args:     map[string]any{"datasets": "A,B"},
			wantCode: "malformed_dataset",
		},
		{
			name:     "rows not objects",
			tool:     "join_datasets",
			args:     map[string]any{"datasets": []any{map[string]any{"name": "A", "rows": []any{1, 2}}}},
			wantCode: "malformed_dataset",
		},
		{
			name: "rows and rows_json",
			tool: "join_datasets",
			args: map[string]any{"datasets": []any{
				map[string]any{"name": "A", "rows": []any{map[string]any{"id": 1}}, "rows_json": `[{"id": 1}]`},
			}},
			wantCode: "malformed_dataset",
		},
		{
			name:     "no datasources configured",
			tool:     "inspect_join_keys",
			args:     map[string]any{"datasets": []any{map[string]any{"datasource": "crm", "table": "t"}}},
			wantCode: "unknown_datasource",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, newJoinToolServer(tt.tables), tt.tool, tt.args)
			require.Nil(t, resp.Error)
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
		})
	}
}

func TestJoinTools_DatasourceFailureIsProtocolError(t *testing.T) {
	tables := stubTables{err: errors.New("read crm.t: connection refused")}

	resp := callTool(t, newJoinToolServer(tables), "join_datasets", map[string]any{
		"datasets": []any{
			map[string]any{"datasource": "crm", "table": "t"},
			map[string]any{"datasource": "crm", "table": "u"},
		},
	})

	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestJoinDatasets_RowsJSONKeepsLargeIDsExact(t *testing.T) {
	resp := callTool(t, newJoinToolServer(nil), "join_datasets", map[string]any{
		"datasets": []any{
			map[string]any{"name": "A", "rows_json": `[{"id": 9007199254740993, "name": "a"}]`},
			map[string]any{"name": "B", "rows_json": `[{"id": 9007199254740992, "v": 1}]`},
		},
	})

	require.Nil(t, resp.Error)
	require.False(t, resp.Result.IsError, resp.Result.Content)
	assert.JSONEq(t, `{
		"data": [{"id": 9007199254740993, "name": "a"}],
		"columns": ["id", "name"],
		"row_count": 1,
		"join_summary": ["Dataset B skipped: no key found, no column shares values with another dataset"]
	}`, resp.Result.Content[0].Text)
}

func TestApplyColumnOrder(t *testing.T) {
	ds := &models.Dataset{Columns: []string{"a", "b", "c", "d"}}

	applyColumnOrder(ds, []string{"c", "missing", "a", "c"})
	assert.Equal(t, []string{"c", "a", "b", "d"}, ds.Columns)

	applyColumnOrder(ds, nil)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ds.Columns)
}
