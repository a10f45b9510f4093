// Package health reports whether the parts essync depends on are usable.
//
//	GET /health            open databases and, with object storage, the policy bucket
//	GET /health/storage    policy bucket and per-database policy documents (?fix=true creates the bucket)
//	GET /health/:database  source schema inspection and search engine ping
//
// The checks live in the checks subpackage so the CLI can run them without
// the HTTP layer.
package health
