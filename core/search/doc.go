// Package search is the search engine side of the mirror.
//
// Sink abstracts one Elasticsearch endpoint: single-document upserts and deletes,
// ordered bulk submission, scroll pagination and index removal. ElasticSink
// implements it on the official go-elasticsearch client; core/search/mocks holds
// a testify mock and core/search/searchtest an in-memory REST server.
//
// # Indices
//
// Each source database maps to one index named IndexName(database). Indices are
// typeless: the source class travels in the "@class" field of every document,
// and TypeQuery selects the documents of one class.
//
// # Bulk processing
//
// BulkProcessor buffers operations and flushes them when any threshold of its
// BulkConfig is reached (action count, estimated payload size, time since the
// last flush) and once more on Close. Flushes run one at a time so operations
// reach the sink in the order they were added. Rejected operations are reported
// to the Listener and counted in BulkStats; they never fail Add.
package search
