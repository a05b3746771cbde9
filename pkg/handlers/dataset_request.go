package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/fileloader"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// multipartMemory is how much of a multipart upload is held in memory before
// parts spill to temporary files.
const multipartMemory = 32 << 20

// JoinRequest is the JSON body of the join endpoints.
type JoinRequest struct {
	Datasets []services.DatasetSpec `json:"datasets"`
	Keys     []models.KeyPair       `json:"keys,omitempty"`
}

// readJoinRequest parses either a JSON JoinRequest or a multipart upload with
// "files" parts and an optional "keys" JSON field.
func readJoinRequest(r *http.Request, tables services.TableSource) ([]*models.Dataset, []models.KeyPair, error) {
	if isMultipart(r) {
		return readMultipartDatasets(r)
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	datasets, err := services.ResolveDatasets(r.Context(), req.Datasets, tables)
	if err != nil {
		return nil, nil, err
	}
	return datasets, req.Keys, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func readMultipartDatasets(r *http.Request) ([]*models.Dataset, []models.KeyPair, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("invalid multipart upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	datasets := make([]*models.Dataset, 0, len(files))
	for i, fh := range files {
		ds, err := loadUpload(fh)
		if err != nil {
			return nil, nil, fmt.Errorf("file %d (%s): %w", i+1, fh.Filename, err)
		}
		datasets = append(datasets, ds)
	}

	var keys []models.KeyPair
	if raw := r.FormValue("keys"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, nil, fmt.Errorf("invalid keys: %w", err)
		}
	}
	return datasets, keys, nil
}

func loadUpload(fh *multipart.FileHeader) (*models.Dataset, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return fileloader.Load(fh.Filename, f)
}
