package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// TableSource reads a table from a configured datasource.
// Implemented by datasource.Manager.
type TableSource interface {
	ReadTable(ctx context.Context, source, table string, limit int) (*models.Dataset, error)
}

// DatasetSpec is a dataset as clients send it: inline rows, or a reference to a
// table in a configured datasource.
type DatasetSpec struct {
	Name       string          `json:"name"`
	Rows       json.RawMessage `json:"rows,omitempty"`
	Datasource string          `json:"datasource,omitempty"`
	Table      string          `json:"table,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

// ResolveDatasets turns specs into datasets in order. Inline rows keep their JSON
// key order as column order. A table reference without a name is named after the
// table. tables may be nil when no datasources are configured.
func ResolveDatasets(ctx context.Context, specs []DatasetSpec, tables TableSource) ([]*models.Dataset, error) {
	datasets := make([]*models.Dataset, 0, len(specs))
	for i, spec := range specs {
		ds, err := resolveDataset(ctx, spec, tables)
		if err != nil {
			return nil, fmt.Errorf("dataset %d: %w", i+1, err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func resolveDataset(ctx context.Context, spec DatasetSpec, tables TableSource) (*models.Dataset, error) {
	hasRows := len(spec.Rows) > 0 && string(spec.Rows) != "null"

	if spec.Datasource == "" {
		if spec.Table != "" {
			return nil, fmt.Errorf("%w: table %q has no datasource", apperrors.ErrMalformedDataset, spec.Table)
		}
		columns, rows, err := models.DecodeRows(spec.Rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedDataset, err)
		}
		return &models.Dataset{Name: spec.Name, Columns: columns, Rows: rows}, nil
	}

	if hasRows {
		return nil, fmt.Errorf("%w: give either rows or a datasource table, not both", apperrors.ErrMalformedDataset)
	}
	if tables == nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDatasource, spec.Datasource)
	}

	ds, err := tables.ReadTable(ctx, spec.Datasource, spec.Table, spec.Limit)
	if err != nil {
		return nil, err
	}
	if spec.Name != "" {
		ds.Name = spec.Name
	}
	return ds, nil
}
