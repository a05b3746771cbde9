// Package fileloader decodes uploaded files into datasets.
package fileloader

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// decodeFunc reads a table as a header row plus data records.
type decodeFunc func(r io.Reader) (header []string, records [][]string, err error)

var decoders = map[string]decodeFunc{
	".csv":  func(r io.Reader) ([]string, [][]string, error) { return decodeDelimited(r, ',') },
	".tsv":  func(r io.Reader) ([]string, [][]string, error) { return decodeDelimited(r, '\t') },
	".xlsx": decodeXLSX,
	".html": decodeHTML,
	".htm":  decodeHTML,
}

// UnsupportedFormatError reports a file extension Load cannot decode.
// It matches apperrors.ErrUnsupportedFormat with errors.Is.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q", apperrors.ErrUnsupportedFormat, e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return apperrors.ErrUnsupportedFormat
}

// Extension returns the lower-cased extension of filename including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// SupportedExtensions lists the extensions Load accepts, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders)+1)
	for ext := range decoders {
		exts = append(exts, ext)
	}
	exts = append(exts, ".json")
	sort.Strings(exts)
	return exts
}

// Load decodes r according to the extension of filename. The dataset is named
// after the file's base name.
//
// Tabular formats infer one type per column (see buildDataset). JSON input must
// be an array of objects and keeps its decoded types.
// Returns apperrors.ErrUnsupportedFormat for unknown extensions and
// apperrors.ErrMalformedDataset when the content cannot be decoded.
func Load(filename string, r io.Reader) (*models.Dataset, error) {
	name := filepath.Base(filename)
	ext := Extension(filename)

	if ext == ".json" {
		return decodeJSON(name, r)
	}

	decode, ok := decoders[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext}
	}

	header, records, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedDataset, name, err)
	}
	return buildDataset(name, header, records), nil
}

func decodeJSON(name string, r io.Reader) (*models.Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	columns, rows, err := models.DecodeRows(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedDataset, name, err)
	}
	return models.NewDataset(name, columns, rows), nil
}
