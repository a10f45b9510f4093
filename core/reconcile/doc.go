// Package reconcile compares the records of a source class with the documents
// its search index holds, and plans or applies the repairs.
//
// A reconciliation loads two indices concurrently through an Adapter: the
// identities of the class's records, each flagged with whether the policy
// mirrors it, and the identities found in the index for the class. Built
// indices are cached per database and class in a Store with a TTL, and
// concurrent builds of the same key are coalesced.
//
// Each identity is classified as in sync, missing from the index (a mirrored
// record without a document) or stale (a document whose record is gone or no
// longer selected). ReconcileWithPlan turns the classification into reindex
// and delete actions; ApplyPlan executes them only when confirmed.
//
// # Usage Example
//
//	adapter := reconcile.NewMirrorAdapter(server, plugin, logger)
//	store := reconcile.NewStore()
//	spec := &reconcile.Spec{Database: "shop", Class: "Person", CacheTTL: time.Minute}
//
//	plan, err := reconcile.ReconcileWithPlan(ctx, spec, adapter, store,
//	    reconcile.Options{DoReindex: true, DoPurge: true})
//
//	executed, err := reconcile.ApplyPlan(ctx, adapter, store, plan,
//	    reconcile.Options{Confirmed: true})
package reconcile
