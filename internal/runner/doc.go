// Package runner orchestrates GraphQL queries and subscriptions
// against an eventually-consistent indexed store.
//
// # Query orchestration
//
// One orchestration call pins exactly one store handle and routes
// every read through it. Replicas are eventually consistent; mixing
// handles mid-query could mix data from replicas at different
// indexing progress even without any revert happening. The call then:
//
//  1. captures the deployment's baseline state,
//  2. builds the validated internal query (complexity/depth bounds),
//  3. gates on the admission controller before any execution work,
//  4. partitions the query by block constraint and runs the
//     partitions strictly in sequence against the external execution
//     engine, merging partial results with union semantics,
//  5. re-checks the deployment state: if reorgs since the baseline
//     could have invalidated any block the query observed, the whole
//     call fails with a revert error.
//
// Partitions are deliberately sequential. Running them in parallel
// would need either per-partition handles (reintroducing the replica
// mixing the pinned handle exists to prevent) or extra synchronization
// for no real gain, since almost all queries have one partition.
//
// # Subscriptions
//
// Subscriptions build and gate the query the same way, then hand off
// to the subscription engine with a live (not block-pinned) handle.
// No consistency guard applies; a subscription observes a
// continuously advancing view.
package runner
