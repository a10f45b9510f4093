// Package policy decides which records, and which of their fields, are mirrored
// into the search index.
//
// Each source database has one JSON policy document, read by a Loader either from
// a local directory or from the object storage bucket:
//
//	{
//	  "exclude.classes": ["Secret"],
//	  "include.classes": {"Person": ["name"], "City": []},
//	  "include.clusters": {"archive": null},
//	  "es.host": "search.internal",
//	  "es.port": 9200,
//	  "es.clusterName": "prod"
//	}
//
// An include entry with no fields mirrors every field. Exclusion always wins
// over inclusion. The parsed Configuration is immutable and shared by the
// realtime and batch paths.
package policy
