package checks

import (
	"fmt"
	"sort"

	"essync/core/database"

	"gorm.io/gorm"
)

// SchemaReport is the result of a source schema check.
type SchemaReport struct {
	Database string                 `json:"database"`
	Matched  bool                   `json:"matched"`
	Tables   map[string]TableReport `json:"tables"`
	Errors   []string               `json:"errors"`
}

// TableReport is the result for one table.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	Status         string   `json:"status"` // "ok", "error"
}

// CheckSchema verifies that every table of expected carries its columns.
func CheckSchema(db *gorm.DB, name string, expected map[string][]string) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Database: name,
		Matched:  true,
		Tables:   make(map[string]TableReport, len(expected)),
		Errors:   []string{},
	}

	tables := make([]string, 0, len(expected))
	for table := range expected {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		missing, err := database.MissingColumns(db, table, expected[table])
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", table, err))
			report.Matched = false
			continue
		}

		tbl := TableReport{MissingColumns: []string{}, Status: "ok"}
		if len(missing) > 0 {
			tbl.MissingColumns = missing
			tbl.Status = "error"
			report.Matched = false
		}
		report.Tables[table] = tbl
	}
	return report, nil
}
