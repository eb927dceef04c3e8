package runner

import (
	"context"

	engine "github.com/hanpama/chainql/internal/engine"
	eventbus "github.com/hanpama/chainql/internal/eventbus"
	events "github.com/hanpama/chainql/internal/events"
	query "github.com/hanpama/chainql/internal/query"
	store "github.com/hanpama/chainql/internal/store"
)

// RunSubscription sets up a live subscription for target and returns
// its result stream. Setup failures (validation, admission) come back
// as a *SubscriptionError; once the stream is returned, the
// subscription engine owns the store handle and releases it when the
// stream ends.
func (r *Runner) RunSubscription(ctx context.Context, req query.Request, target store.Target) (<-chan *query.Result, error) {
	h, err := r.store.QueryStore(ctx, target, true)
	if err != nil {
		return nil, subscriptionError(err)
	}

	schema, err := h.APISchema()
	if err != nil {
		h.Release()
		return nil, subscriptionError(err)
	}
	q, err := query.New(schema, h.NetworkName(), req, r.opts.maxComplexity, r.opts.maxDepth)
	if err != nil {
		h.Release()
		return nil, subscriptionError(err)
	}
	if !q.IsSubscription() {
		h.Release()
		return nil, subscriptionError(errNotASubscription)
	}

	if err := r.load.Decide(h.WaitStats(), q.ShapeHash, q.Text).Err(); err != nil {
		h.Release()
		return nil, subscriptionError(err)
	}

	eventbus.Publish(ctx, events.SubscriptionStart{
		Deployment: target.Deployment,
		ShapeHash:  q.ShapeHash,
	})

	stream, err := r.subEngine.Subscribe(ctx, q, engine.SubscriptionOptions{
		Logger:        r.log,
		Handle:        h,
		Manager:       r.subscriptions,
		Timeout:       r.opts.queryTimeout,
		MaxComplexity: r.opts.maxComplexity,
		MaxDepth:      r.opts.maxDepth,
		MaxFirst:      r.opts.maxFirst,
		MaxSkip:       r.opts.maxSkip,
		ResultSize:    r.resultSize,
	})
	if err != nil {
		h.Release()
		return nil, err
	}
	return stream, nil
}
