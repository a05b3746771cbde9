package mssql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
)

// quoteName mirrors QUOTENAME(): square brackets with ] escaped as ]].
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "]", "]]")
	return fmt.Sprintf("[%s]", escaped)
}

// selectStatement builds the read for a table. Bracketed names are accepted;
// the schema defaults to dbo.
func selectStatement(table string, limit int) (string, error) {
	cleaned := strings.NewReplacer("[", "", "]", "").Replace(table)
	schema, name, err := datasource.SplitTableName(cleaned)
	if err != nil {
		return "", err
	}
	if schema == "" {
		schema = "dbo"
	}

	target := quoteName(schema) + "." + quoteName(name)
	if limit > 0 {
		return fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, target), nil
	}
	return "SELECT * FROM " + target, nil
}
