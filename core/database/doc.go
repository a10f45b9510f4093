// Package database handles connections to the source database and schema inspection.
//
// It wraps GORM to open either a MySQL schema or a SQLite file based on the
// application's configuration. The source document store opens one connection per
// source database through Connect.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read the live column definitions of a table.
// The health feature uses them to verify that the record tables of a source
// database have the layout the synchronizer relies on.
//
// # Usage
//
//	db, err := database.Connect(database.Config{Driver: "sqlite", Name: "./databases/demo.db"})
//	if err != nil {
//	    return err
//	}
//
//	missing, err := database.MissingColumns(db, "records", []string{"cluster_id", "position"})
package database
