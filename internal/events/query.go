package events

import (
	"time"

	store "github.com/hanpama/chainql/internal/store"
)

// QueryStart is emitted when the runner begins orchestrating a query.
type QueryStart struct {
	Deployment string
	ShapeHash  uint64
	Complexity uint64
}

// QueryFinish is emitted when the runner finishes a query, success or
// failure.
type QueryFinish struct {
	Deployment string
	ShapeHash  uint64
	// MaxBlock is the highest block number any partition observed.
	MaxBlock uint64
	Errors   int
	Duration time.Duration
}

// PartitionStart is emitted before a block-constraint partition runs.
type PartitionStart struct {
	Deployment string
	Constraint store.BlockConstraint
	Block      store.BlockPtr
}

// PartitionFinish is emitted after a partition's execution returns.
type PartitionFinish struct {
	Deployment string
	Block      store.BlockPtr
	Errors     int
	Duration   time.Duration
}

// SubscriptionStart is emitted when a subscription is handed to the
// subscription engine.
type SubscriptionStart struct {
	Deployment string
	ShapeHash  uint64
}
