// Package mirror keeps search indices consistent with source databases.
//
// Both execution paths share one Projector, driven by the database's policy:
//
//   - Hook runs inline with every committed source write and upserts or deletes
//     the matching search document synchronously.
//   - Batcher.SyncBatch drains a record sequence (command result, class scan,
//     cluster scan) through a private BulkProcessor that flushes at 10000
//     actions, 10 MiB or 30 seconds, and once more when the sequence ends.
//
// DropClass and Drop remove index state when a class or database goes away.
//
// Registry caches one Binding (policy plus long-lived sink) per database; Plugin
// wires it all to the source server's lifecycle events.
package mirror
