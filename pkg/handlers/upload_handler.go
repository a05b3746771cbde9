package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// UploadHandler profiles a single uploaded file without joining it.
type UploadHandler struct {
	maxUploadBytes int64
	previewRows    int
	logger         *zap.Logger
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(maxUploadBytes int64, previewRows int, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{maxUploadBytes: maxUploadBytes, previewRows: previewRows, logger: logger}
}

// RegisterRoutes registers the upload handler's routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload-file", h.Upload)
}

// Upload handles POST /upload-file with a multipart "file" part.
// Responds with {headers, data, summary, insights}.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = errors.New("expected a multipart upload with a file field")
		}
		h.fail(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		h.fail(w, errors.New("no file uploaded"))
		return
	}

	ds, err := loadUpload(files[0])
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Debug("Profiled upload",
		zap.String("file", ds.Name),
		zap.Int("rows", ds.RowCount()),
		zap.Int("columns", len(ds.Columns)))

	if err := WriteJSON(w, http.StatusOK, services.ProfileDataset(ds, h.previewRows)); err != nil {
		h.logger.Error("Failed to encode upload response", zap.Error(err))
	}
}

func (h *UploadHandler) fail(w http.ResponseWriter, err error) {
	h.logger.Info("Upload rejected", zap.Error(err))
	if err := WriteError(w, UserMessage(err)); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
