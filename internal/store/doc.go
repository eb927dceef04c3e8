// Package store defines the contracts the query runner needs from the
// indexed store: acquiring a pinned single-replica handle for a
// deployment, reading its indexing state, and resolving block
// constraints to concrete blocks.
//
// The store itself (replication, replica selection, reorg handling) is
// an external collaborator; this package only fixes the surface the
// orchestration layer consumes. Implementations must uphold two
// contracts the runner's correctness depends on:
//
//   - A Handle is a view onto exactly one replica. All reads through
//     one Handle observe a single store snapshot lineage; the runner
//     never mixes handles within one call.
//   - DeploymentState.ReorgCount is monotonically non-decreasing over
//     the lifetime of a Handle. The runner treats a regression as a
//     broken store and panics.
package store
