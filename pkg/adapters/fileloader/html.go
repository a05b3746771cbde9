package fileloader

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// decodeHTML reads the first <table> in the document. The header is the first
// row containing <th> cells, or the first row when there is none.
func decodeHTML(r io.Reader) ([]string, [][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, errors.New("no <table> element found")
	}

	var rows [][]string
	headerAt := -1
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Skip rows of nested tables.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		var cells []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if headerAt < 0 && tr.ChildrenFiltered("th").Length() > 0 {
			headerAt = len(rows)
		}
		rows = append(rows, cells)
	})

	if len(rows) == 0 {
		return nil, nil, errors.New("table has no rows")
	}
	if headerAt < 0 {
		headerAt = 0
	}

	records := make([][]string, 0, len(rows)-1)
	for i, row := range rows {
		if i != headerAt {
			records = append(records, row)
		}
	}
	return rows[headerAt], records, nil
}
