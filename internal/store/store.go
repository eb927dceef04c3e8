package store

import (
	"context"
	"fmt"

	language "github.com/hanpama/chainql/internal/language"
	load "github.com/hanpama/chainql/internal/load"
)

// Target identifies the subgraph deployment a query addresses. It is
// immutable for the duration of one orchestration call.
type Target struct {
	// Deployment is the deployment hash or name the caller selected.
	Deployment string
	// Version optionally pins a deployment version ("current" when empty).
	Version string
}

func (t Target) String() string {
	if t.Version == "" {
		return t.Deployment
	}
	return t.Deployment + "@" + t.Version
}

// DeploymentState captures the indexing progress and revert history of
// one deployment at a point in time.
type DeploymentState struct {
	Deployment string
	// ReorgCount is the number of chain reorganizations the deployment
	// has processed since it was created.
	ReorgCount uint32
	// MaxReorgDepth bounds how many blocks a single reorg may revert.
	MaxReorgDepth uint32
	// LatestBlock is the highest block the deployment has indexed.
	LatestBlock uint64
}

// BlockPtr is a concrete block in the indexed chain.
type BlockPtr struct {
	Number uint64
	Hash   string
}

func (b BlockPtr) String() string { return fmt.Sprintf("#%d (%s)", b.Number, b.Hash) }

// ConstraintKind discriminates BlockConstraint variants.
type ConstraintKind int

const (
	// Latest pins a selection to the latest indexed block.
	Latest ConstraintKind = iota
	// Number pins a selection to one specific block number.
	Number
	// Hash pins a selection to the block with a specific hash.
	Hash
	// NumberGTE requires the store to have indexed at least this block
	// and then reads at the latest one.
	NumberGTE
)

// BlockConstraint is a requested upper bound on which indexed state a
// selection may observe. It is comparable so partitions can be grouped
// by constraint.
type BlockConstraint struct {
	Kind   ConstraintKind
	Number uint64
	Hash   string
}

func LatestBlock() BlockConstraint           { return BlockConstraint{Kind: Latest} }
func AtNumber(n uint64) BlockConstraint      { return BlockConstraint{Kind: Number, Number: n} }
func AtHash(h string) BlockConstraint        { return BlockConstraint{Kind: Hash, Hash: h} }
func NumberAtLeast(n uint64) BlockConstraint { return BlockConstraint{Kind: NumberGTE, Number: n} }

func (c BlockConstraint) String() string {
	switch c.Kind {
	case Number:
		return fmt.Sprintf("block #%d", c.Number)
	case Hash:
		return fmt.Sprintf("block %s", c.Hash)
	case NumberGTE:
		return fmt.Sprintf("block >= #%d", c.Number)
	default:
		return "latest block"
	}
}

// Event is a change notification for a deployment, delivered to
// subscription consumers whenever new blocks are indexed or reverted.
type Event struct {
	Deployment string
	Block      uint64
}

// Manager hands out query store handles. Replica selection happens
// behind this interface; the returned Handle is pinned to the chosen
// replica for its whole lifetime.
type Manager interface {
	// QueryStore acquires a read-only handle for target. Subscriptions
	// pass forSubscription=true and receive a live (not block-pinned)
	// view.
	QueryStore(ctx context.Context, target Target, forSubscription bool) (Handle, error)
}

// Handle is a pinned connection onto one replica of the store. The
// runner acquires exactly one Handle per orchestration call and routes
// every read of that call through it.
type Handle interface {
	// DeploymentState reads the deployment's current indexing state.
	DeploymentState(ctx context.Context) (DeploymentState, error)

	// BlockPtr resolves a block constraint to a concrete block against
	// this handle's replica. Resolution fails when the requested block
	// is not indexed (yet, or anymore).
	BlockPtr(ctx context.Context, c BlockConstraint) (BlockPtr, error)

	// NetworkName reports the chain network the deployment indexes.
	NetworkName() string

	// APISchema returns the deployment's query schema.
	APISchema() (*language.Schema, error)

	// WaitStats exposes recent connection wait times for admission
	// control.
	WaitStats() *load.MovingStats

	// Release returns the handle's underlying resource. It must be
	// called on every exit path and is safe to call once only.
	Release()
}
