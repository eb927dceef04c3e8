// Package engine defines the execution-engine collaborators the runner
// delegates field resolution to.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	language "github.com/hanpama/chainql/internal/language"
	load "github.com/hanpama/chainql/internal/load"
	metrics "github.com/hanpama/chainql/internal/metrics"
	query "github.com/hanpama/chainql/internal/query"
	store "github.com/hanpama/chainql/internal/store"
)

// Context carries the per-partition execution context: the concrete
// block the partition was resolved to, its error policy, and the
// recorder successful results report their weight to.
type Context struct {
	Handle     store.Handle
	Block      store.BlockPtr
	Policy     query.ErrorPolicy
	ResultSize *metrics.ResultSize
}

// Options bounds one partition's execution.
type Options struct {
	// Deadline aborts resolution with a timeout error when reached.
	// Zero means no deadline.
	Deadline time.Time
	// MaxFirst and MaxSkip cap pagination arguments.
	MaxFirst int
	MaxSkip  int
	// Load is the process-wide admission handle, available to
	// engines that meter per-field work.
	Load load.Decider
}

// Engine resolves one partition's selection subset against a pinned
// block.
//
// Contract:
//   - Execute never returns nil; failures are reported as errors
//     inside the Result, resolution may partially succeed.
//   - All store reads go through ectx.Handle so the partition observes
//     the single replica the runner pinned.
//   - Implementations must respect ctx cancellation and the deadline
//     in opts, returning a timeout error result rather than blocking.
//   - Successful results set Result.Weight; the runner records it.
//   - Implementations must be safe for concurrent calls; any state
//     shared across calls is their own to synchronize.
type Engine interface {
	Execute(ctx context.Context, q *query.Query, sel language.SelectionSet, ectx *Context, opts Options) *query.Result
}

// SubscriptionOptions configures a live subscription execution.
type SubscriptionOptions struct {
	Logger  *zap.SugaredLogger
	Handle  store.Handle
	Manager SubscriptionManager
	// Timeout bounds each individual result resolution, not the
	// subscription's lifetime.
	Timeout       time.Duration
	MaxComplexity uint64
	MaxDepth      int
	MaxFirst      int
	MaxSkip       int
	ResultSize    *metrics.ResultSize
}

// SubscriptionEngine executes subscriptions against a live, not
// block-pinned, store view.
//
// Subscribe returns a stream of results that the engine closes when
// the subscription ends or ctx is cancelled. Setup failures are
// returned as an error instead of a stream. Staleness detection for
// the stream, if any, is the engine's own concern; the runner's
// consistency guard does not apply to subscriptions.
type SubscriptionEngine interface {
	Subscribe(ctx context.Context, q *query.Query, opts SubscriptionOptions) (<-chan *query.Result, error)
}

// SubscriptionManager delivers store change notifications for a
// deployment. The returned cancel func releases the subscription and
// closes the channel.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, deployment string) (<-chan store.Event, func())
}
