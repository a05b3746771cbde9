package apperrors

import "errors"

var (
	ErrInsufficientDatasets  = errors.New("need at least 2 datasets to join")
	ErrMalformedDataset      = errors.New("malformed dataset")
	ErrUnsupportedFormat     = errors.New("unsupported file format")
	ErrUnknownDatasource     = errors.New("unknown datasource")
	ErrScoringBudgetExceeded = errors.New("column scoring budget exceeded")
)
