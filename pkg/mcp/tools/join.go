package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// JoinToolDeps contains dependencies for the join tools.
type JoinToolDeps struct {
	Joins       services.JoinService
	Tables      services.TableSource // nil when no datasources are configured
	PreviewRows int
	Logger      *zap.Logger
}

// datasetArg is one entry of the "datasets" argument. MCP arguments arrive
// already decoded, which loses JSON key order and rounds integers above 2^53.
// Callers may pin column order with Columns, or send RowsJSON, a JSON array of
// row objects as text, which is decoded exactly.
type datasetArg struct {
	services.DatasetSpec
	Columns  []string `json:"columns,omitempty"`
	RowsJSON string   `json:"rows_json,omitempty"`
}

var datasetItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":       map[string]any{"type": "string", "description": "Dataset name used in keys and summaries"},
		"rows":       map[string]any{"type": "array", "items": map[string]any{"type": "object"}, "description": "Inline rows as objects"},
		"rows_json":  map[string]any{"type": "string", "description": "Inline rows as JSON text; keeps column order and large integer ids exact"},
		"columns":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Optional column order for inline rows"},
		"datasource": map[string]any{"type": "string", "description": "Configured datasource to read the table from"},
		"table":      map[string]any{"type": "string", "description": "Table name, optionally schema-qualified"},
		"limit":      map[string]any{"type": "integer", "description": "Maximum rows to read from the table"},
	},
}

var keyItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"file1": map[string]any{"type": "string", "description": "Dataset already in the join"},
		"col1":  map[string]any{"type": "string", "description": "Key column in file1"},
		"file2": map[string]any{"type": "string", "description": "Dataset to join in"},
		"col2":  map[string]any{"type": "string", "description": "Key column in file2"},
	},
	"required": []string{"file1", "col1", "file2", "col2"},
}

// RegisterJoinTools registers inspect_join_keys and join_datasets.
func RegisterJoinTools(s *server.MCPServer, deps *JoinToolDeps) {
	registerInspectJoinKeysTool(s, deps)
	registerJoinDatasetsTool(s, deps)
}

func registerInspectJoinKeysTool(s *server.MCPServer, deps *JoinToolDeps) {
	tool := mcp.NewTool(
		"inspect_join_keys",
		mcp.WithDescription(
			"Score every column pair across the given datasets by how many distinct values they share. "+
				"Returns the best candidate join keys as [{file1, col1, file2, col2, score}], highest score first.",
		),
		mcp.WithArray(
			"datasets",
			mcp.Required(),
			mcp.Description("Datasets to compare: inline rows, or a datasource table reference"),
			mcp.Items(datasetItemSchema),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		datasets, _, err := parseJoinArguments(ctx, req, deps.Tables)
		if err != nil {
			return toolError(deps, "inspect_join_keys", err)
		}

		matches, err := deps.Joins.InspectMatches(ctx, datasets)
		if err != nil {
			return toolError(deps, "inspect_join_keys", err)
		}
		return jsonResult(matches)
	})
}

func registerJoinDatasetsTool(s *server.MCPServer, deps *JoinToolDeps) {
	tool := mcp.NewTool(
		"join_datasets",
		mcp.WithDescription(
			"Left-join the datasets into one table. Without keys the join keys are inferred from shared values; "+
				"with keys each pair is applied in order. "+
				fmt.Sprintf("Returns the first %d rows, the column list, the full row count and a join_summary describing every step.", deps.PreviewRows),
		),
		mcp.WithArray(
			"datasets",
			mcp.Required(),
			mcp.Description("Datasets to join, the first one is the base table"),
			mcp.Items(datasetItemSchema),
		),
		mcp.WithArray(
			"keys",
			mcp.Description("Optional explicit join keys"),
			mcp.Items(keyItemSchema),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		datasets, keys, err := parseJoinArguments(ctx, req, deps.Tables)
		if err != nil {
			return toolError(deps, "join_datasets", err)
		}

		outcome, err := deps.Joins.Join(ctx, datasets, keys)
		if err != nil {
			return toolError(deps, "join_datasets", err)
		}
		return jsonResult(services.PresentJoin(outcome, deps.PreviewRows))
	})
}

// parseJoinArguments decodes the datasets and keys arguments and resolves
// datasource references.
func parseJoinArguments(ctx context.Context, req mcp.CallToolRequest, tables services.TableSource) ([]*models.Dataset, []models.KeyPair, error) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: invalid request arguments", apperrors.ErrMalformedDataset)
	}

	rawDatasets, ok := args["datasets"]
	if !ok || rawDatasets == nil {
		return nil, nil, fmt.Errorf("%w: 'datasets' is required", apperrors.ErrMalformedDataset)
	}
	var items []datasetArg
	if err := remarshal(rawDatasets, &items); err != nil {
		return nil, nil, fmt.Errorf("%w: 'datasets' must be an array of objects: %v", apperrors.ErrMalformedDataset, err)
	}

	var keys []models.KeyPair
	if rawKeys, ok := args["keys"]; ok && rawKeys != nil {
		if err := remarshal(rawKeys, &keys); err != nil {
			return nil, nil, fmt.Errorf("%w: 'keys' must be an array of {file1, col1, file2, col2}: %v", apperrors.ErrMalformedDataset, err)
		}
	}

	specs := make([]services.DatasetSpec, len(items))
	for i, item := range items {
		specs[i] = item.DatasetSpec
		if item.RowsJSON == "" {
			continue
		}
		if len(item.Rows) > 0 && string(item.Rows) != "null" {
			return nil, nil, fmt.Errorf("%w: dataset %d: give either rows or rows_json, not both", apperrors.ErrMalformedDataset, i+1)
		}
		specs[i].Rows = json.RawMessage(item.RowsJSON)
	}
	datasets, err := services.ResolveDatasets(ctx, specs, tables)
	if err != nil {
		return nil, nil, err
	}
	for i, item := range items {
		applyColumnOrder(datasets[i], item.Columns)
	}
	return datasets, keys, nil
}

// applyColumnOrder moves the listed columns to the front in the given order.
// Unknown names are ignored; unlisted columns keep their relative order.
func applyColumnOrder(ds *models.Dataset, order []string) {
	if len(order) == 0 {
		return
	}
	ordered := make([]string, 0, len(ds.Columns))
	for _, col := range order {
		if slices.Contains(ds.Columns, col) && !slices.Contains(ordered, col) {
			ordered = append(ordered, col)
		}
	}
	for _, col := range ds.Columns {
		if !slices.Contains(ordered, col) {
			ordered = append(ordered, col)
		}
	}
	ds.Columns = ordered
}

// remarshal converts decoded arguments into typed values. Numbers are read
// with UseNumber so integral values are not widened to float64 a second time.
func remarshal(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func toolError(deps *JoinToolDeps, tool string, err error) (*mcp.CallToolResult, error) {
	if result := NewInputErrorResult(err); result != nil {
		deps.Logger.Debug("Join tool input error", zap.String("tool", tool), zap.Error(err))
		return result, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	deps.Logger.Error("Join tool failed", zap.String("tool", tool), zap.Error(err))
	return nil, fmt.Errorf("%s failed: %w", tool, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
