package services

import (
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// PresentJoin truncates the merged table to previewRows rows and pairs it with the
// provenance log. Row count and columns describe the full table.
func PresentJoin(outcome *JoinOutcome, previewRows int) *models.JoinResponse {
	table := outcome.Table
	summary := outcome.Summary
	if summary == nil {
		summary = []string{}
	}
	return &models.JoinResponse{
		Data:        models.OrderRows(table.Columns, table.Preview(previewRows)),
		Columns:     table.Columns,
		RowCount:    len(table.Rows),
		JoinSummary: summary,
	}
}
