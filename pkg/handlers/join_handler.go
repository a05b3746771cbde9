package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// JoinHandler serves key inspection and join execution.
type JoinHandler struct {
	joins          services.JoinService
	tables         services.TableSource
	maxUploadBytes int64
	previewRows    int
	logger         *zap.Logger
}

// NewJoinHandler creates a join handler. tables may be nil when no datasources
// are configured.
func NewJoinHandler(joins services.JoinService, tables services.TableSource, maxUploadBytes int64, previewRows int, logger *zap.Logger) *JoinHandler {
	return &JoinHandler{
		joins:          joins,
		tables:         tables,
		maxUploadBytes: maxUploadBytes,
		previewRows:    previewRows,
		logger:         logger,
	}
}

// RegisterRoutes registers the join handler's routes on the given mux.
func (h *JoinHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/join/matches", h.Matches)
	mux.HandleFunc("POST /api/join", h.Join)
}

// Matches handles POST /api/join/matches.
// Responds with the best-scoring column pairs: [{file1, col1, file2, col2, score}].
func (h *JoinHandler) Matches(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	datasets, _, err := readJoinRequest(r, h.tables)
	if err != nil {
		h.fail(w, "Invalid join request", err)
		return
	}

	matches, err := h.joins.InspectMatches(r.Context(), datasets)
	if err != nil {
		h.fail(w, "Key inspection failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, matches); err != nil {
		h.logger.Error("Failed to encode matches response", zap.Error(err))
	}
}

// Join handles POST /api/join.
// Responds with {data, columns, row_count, join_summary}, or a message when fewer
// than two datasets were supplied.
func (h *JoinHandler) Join(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	datasets, keys, err := readJoinRequest(r, h.tables)
	if err != nil {
		h.fail(w, "Invalid join request", err)
		return
	}

	outcome, err := h.joins.Join(r.Context(), datasets, keys)
	if errors.Is(err, apperrors.ErrInsufficientDatasets) {
		if err := WriteMessage(w, InsufficientDatasetsMessage); err != nil {
			h.logger.Error("Failed to encode join response", zap.Error(err))
		}
		return
	}
	if err != nil {
		h.fail(w, "Join failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, services.PresentJoin(outcome, h.previewRows)); err != nil {
		h.logger.Error("Failed to encode join response", zap.Error(err))
	}
}

func (h *JoinHandler) fail(w http.ResponseWriter, logMsg string, err error) {
	h.logger.Info(logMsg, zap.Error(err))
	if err := WriteError(w, UserMessage(err)); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
