// Package document models the records of the source document database.
//
// A Record is identified by a permanent address (RID, printed as "#cluster:position")
// and carries a class name plus an ordered set of fields. Field values are plain
// scalars, nested maps and slices, or references to other records:
//
//   - RID: a link to another persisted record.
//   - *Record: a linked or embedded record. Once persisted it is stored as a link.
//   - *RidBag: a multi-valued reference collection.
//
// # Body Codec
//
// EncodeBody and DecodeBody convert the fields of a record to and from the JSON
// body stored by the source database. References are tagged with an "@type" key
// so they survive the round trip, and field order is preserved.
//
// # Usage
//
//	rec := document.NewRecord("Person").
//	    Set("name", "Ann").
//	    Set("friend", document.MustParseRID("#10:4"))
//
//	body, err := document.EncodeBody(rec)
package document
