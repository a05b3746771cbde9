// Package handlers exposes the join engine over HTTP.
//
// Join and upload endpoints always answer 200; failures are reported in the body
// as {"error": "..."} so clients read a single shape.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/fileloader"
	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes {"error": message} with status 200.
func WriteError(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"error": message})
}

// WriteMessage writes {"message": message} with status 200.
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// InsufficientDatasetsMessage is returned instead of a join result for fewer than two datasets.
const InsufficientDatasetsMessage = "Need at least 2 datasets to join"

// UserMessage renders err for the "error" field of a response.
func UserMessage(err error) string {
	var (
		tooLarge    *http.MaxBytesError
		unsupported *fileloader.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &unsupported):
		return "Unsupported file format: " + unsupported.Ext
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("Upload exceeds the %d byte limit", tooLarge.Limit)
	case errors.Is(err, apperrors.ErrInsufficientDatasets):
		return InsufficientDatasetsMessage
	default:
		return err.Error()
	}
}
