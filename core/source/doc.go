// Package source implements the document database the synchronizer mirrors from.
//
// A Server owns named databases. Each database stores classes, clusters, records and
// users in four relational tables managed through gorm, so the same code runs against
// sqlite files (one per database) and mysql schemas.
//
// # Records
//
// Records live in clusters and are addressed by a RID (#cluster:position). Creating a
// class also creates its default cluster, named after the class in lower case. Record
// bodies are stored with document.EncodeBody, preserving field order.
//
// # Hooks
//
// Hooks registered with Database.RegisterHook are called synchronously after every
// committed create, update and delete. Hook errors are returned to the writer joined
// under ErrHookFailed; the write is not rolled back.
//
// # Iteration
//
// BrowseClass and BrowseCluster stream rows from an open cursor. Cluster names are
// served from memory so callers can resolve them while a cursor is open.
//
// # Usage
//
//	srv := source.NewServer(cfg.Database, log)
//	db, _ := srv.Create(ctx, "GratefulDeadConcerts")
//	_ = db.CreateClass(ctx, "Person")
//	rec := document.NewRecord("Person").Set("name", "Jerry")
//	_ = db.Save(ctx, rec)
package source
