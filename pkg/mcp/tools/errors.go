package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can fix are returned as a successful tool result with
// IsError set, so the details stay visible to the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Do NOT use this for system failures (datasource connection errors);
// those return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// InputErrorCode maps errors caused by the caller's datasets or keys to a code.
// Returns "" for anything else.
func InputErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperrors.ErrInsufficientDatasets):
		return "insufficient_datasets"
	case errors.Is(err, apperrors.ErrMalformedDataset):
		return "malformed_dataset"
	case errors.Is(err, apperrors.ErrUnknownDatasource):
		return "unknown_datasource"
	case errors.Is(err, apperrors.ErrUnsupportedFormat):
		return "unsupported_format"
	}
	return ""
}

// NewInputErrorResult returns a structured error result when err is an input
// error, or nil when the caller should return err as a Go error.
func NewInputErrorResult(err error) *mcp.CallToolResult {
	code := InputErrorCode(err)
	if code == "" {
		return nil
	}
	return NewErrorResult(code, err.Error())
}
