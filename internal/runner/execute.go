package runner

import (
	"context"
	"time"

	engine "github.com/hanpama/chainql/internal/engine"
	eventbus "github.com/hanpama/chainql/internal/eventbus"
	events "github.com/hanpama/chainql/internal/events"
	query "github.com/hanpama/chainql/internal/query"
	store "github.com/hanpama/chainql/internal/store"
)

// execute drives one query orchestration call. baseline, when non-nil,
// overrides the captured deployment state; only tests pass it,
// production callers always source the state from the handle.
func (r *Runner) execute(ctx context.Context, req query.Request, target store.Target, limits Limits, baseline *store.DeploymentState) *query.Results {
	// One handle for the entire call. Replicas are eventually
	// consistent; everything below must go through this handle, never
	// through a second acquisition.
	h, err := r.store.QueryStore(ctx, target, false)
	if err != nil {
		return query.ResultsFromError(err)
	}
	defer h.Release()

	state, err := h.DeploymentState(ctx)
	if err != nil {
		return query.ResultsFromError(err)
	}
	if baseline != nil {
		state = *baseline
	}
	schema, err := h.APISchema()
	if err != nil {
		return query.ResultsFromError(err)
	}

	maxComplexity, maxDepth, maxFirst, maxSkip := r.limits(limits)
	q, err := query.New(schema, h.NetworkName(), req, maxComplexity, maxDepth)
	if err != nil {
		return query.ResultsFromError(err)
	}

	// Admission gate. A rejection short-circuits before any partition
	// work or block resolution.
	if err := r.load.Decide(h.WaitStats(), q.ShapeHash, q.Text).Err(); err != nil {
		return query.ResultsFromError(err)
	}

	parts, err := q.Partitions()
	if err != nil {
		return query.ResultsFromError(err)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.QueryStart{
		Deployment: state.Deployment,
		ShapeHash:  q.ShapeHash,
		Complexity: q.Complexity,
	})

	var deadline time.Time
	if r.opts.queryTimeout > 0 {
		deadline = start.Add(r.opts.queryTimeout)
	}

	// Partitions run strictly in sequence; see the package doc for why
	// they are not parallelized. The loop runs at least once: a query
	// without explicit block pins still has its one implicit latest
	// partition.
	var maxBlock uint64
	results := query.NewResults()
	for _, p := range parts {
		res := r.executePartition(ctx, h, state.Deployment, q, p, deadline, maxFirst, maxSkip, &maxBlock)
		results.Append(res)
	}

	// The shape and the highest observed block are logged whether the
	// guard below passes or not.
	r.log.Debugw("query execution complete",
		"deployment", state.Deployment,
		"shape_hash", q.ShapeHash,
		"max_block", maxBlock,
		"partitions", len(parts),
		"errors", len(results.Errors()),
		"duration", time.Since(start),
	)
	eventbus.Publish(ctx, events.QueryFinish{
		Deployment: state.Deployment,
		ShapeHash:  q.ShapeHash,
		MaxBlock:   maxBlock,
		Errors:     len(results.Errors()),
		Duration:   time.Since(start),
	})

	if err := r.deploymentChanged(ctx, h, state, maxBlock); err != nil {
		// The merged data can not be trusted anymore; the whole call
		// maps to the revert error.
		return query.ResultsFromError(err)
	}
	return results
}

func (r *Runner) executePartition(
	ctx context.Context,
	h store.Handle,
	deployment string,
	q *query.Query,
	p query.Partition,
	deadline time.Time,
	maxFirst, maxSkip int,
	maxBlock *uint64,
) *query.Result {
	block, err := h.BlockPtr(ctx, p.Constraint)
	if err != nil {
		// An unresolvable block (not indexed yet, or reverted away) is
		// a partition-level error, folded like any other.
		return query.ErrorResult(err)
	}
	if block.Number > *maxBlock {
		*maxBlock = block.Number
	}

	start := time.Now()
	eventbus.Publish(ctx, events.PartitionStart{
		Deployment: deployment,
		Constraint: p.Constraint,
		Block:      block,
	})
	res := r.engine.Execute(ctx, q, p.Selection, &engine.Context{
		Handle:     h,
		Block:      block,
		Policy:     p.Policy,
		ResultSize: r.resultSize,
	}, engine.Options{
		Deadline: deadline,
		MaxFirst: maxFirst,
		MaxSkip:  maxSkip,
		Load:     r.load,
	})
	eventbus.Publish(ctx, events.PartitionFinish{
		Deployment: deployment,
		Block:      block,
		Errors:     len(res.Errors),
		Duration:   time.Since(start),
	})

	if res.HasErrors() && p.Policy == query.PolicyDeny {
		res.Data = nil
	}
	if !res.HasErrors() {
		r.resultSize.Observe(res.Weight)
	}
	return res
}
