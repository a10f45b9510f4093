// Package essync exposes the administrative surface of the search mirror.
//
// # Routes
//
//	GET|POST /essync/:database                 synchronize records
//	DELETE   /essync/:database                 delete the index
//	DELETE   /essync/:database/classes/:class  delete the documents of a class
//	GET|POST /essync/:database/verify?class=C  compare a class with the index
//
// Synchronization accepts a JSON body {"command": ..., "classes": [...],
// "clusters": [...]} or the same keys as query parameters. At most one may be
// set; none synchronizes every cluster. The response carries the human
// readable "Synchronized N records" next to the batch counters.
//
// Every route authenticates with HTTP basic credentials against the users of
// the database named in the path.
package essync
