package fileloader

import (
	"math"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// buildDataset turns a header and string records into a typed dataset.
//
// Headers are trimmed; a blank header becomes "Unnamed: <i>" and a repeated one
// becomes "<name>.<n>". Cells are trimmed and blank cells become nil. Each column
// then takes the narrowest type all of its non-nil cells parse as: int64, float64,
// bool, or string.
func buildDataset(name string, header []string, records [][]string) *models.Dataset {
	width := len(header)
	for _, rec := range records {
		width = max(width, len(rec))
	}
	columns := normalizeHeader(header, width)

	cells := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, width)
		for c := 0; c < width; c++ {
			if c < len(rec) {
				if v := strings.TrimSpace(rec[c]); v != "" {
					row[c] = v
				}
			}
		}
		cells[i] = row
	}

	for c := 0; c < width; c++ {
		convert := inferColumn(cells, c)
		if convert == nil {
			continue
		}
		for _, row := range cells {
			if s, ok := row[c].(string); ok {
				row[c] = convert(s)
			}
		}
	}

	rows := make([]models.Row, len(cells))
	for i, cellRow := range cells {
		row := make(models.Row, width)
		for c, col := range columns {
			row[col] = cellRow[c]
		}
		rows[i] = row
	}

	return &models.Dataset{Name: name, Columns: columns, Rows: rows}
}

func normalizeHeader(header []string, width int) []string {
	columns := make([]string, width)
	used := make(map[string]bool, width)
	repeats := make(map[string]int, width)
	for i := 0; i < width; i++ {
		h := ""
		if i < len(header) {
			h = strings.TrimSpace(strings.TrimPrefix(header[i], "\uFEFF"))
		}
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for used[name] {
			repeats[h]++
			name = h + "." + strconv.Itoa(repeats[h])
		}
		used[name] = true
		columns[i] = name
	}
	return columns
}

// inferColumn returns the conversion for column c, or nil to keep strings.
func inferColumn(cells [][]any, c int) func(string) any {
	allInt, allFloat, allBool := true, true, true
	seen := false
	for _, row := range cells {
		s, ok := row[c].(string)
		if !ok {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, ok := parseFinite(s); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, err := parseBool(s); err != nil {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			return nil
		}
	}

	switch {
	case !seen:
		return nil
	case allInt:
		return func(s string) any {
			n, _ := strconv.ParseInt(s, 10, 64)
			return n
		}
	case allFloat:
		return func(s string) any {
			f, _ := parseFinite(s)
			return f
		}
	case allBool:
		return func(s string) any {
			b, _ := parseBool(s)
			return b
		}
	}
	return nil
}

// parseFinite parses a float, rejecting NaN and infinities so rows stay JSON-encodable.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseBool accepts true and false in any letter case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, strconv.ErrSyntax
}
