package runner

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	engine "github.com/hanpama/chainql/internal/engine"
	load "github.com/hanpama/chainql/internal/load"
	metrics "github.com/hanpama/chainql/internal/metrics"
	query "github.com/hanpama/chainql/internal/query"
	store "github.com/hanpama/chainql/internal/store"
)

// Runner is the externally visible entry point for executing queries
// and subscriptions. One Runner serves the whole process; its
// result-size recorder and admission controller are shared across all
// concurrent calls, everything else is per call.
type Runner struct {
	log           *zap.SugaredLogger
	store         store.Manager
	engine        engine.Engine
	subEngine     engine.SubscriptionEngine
	subscriptions engine.SubscriptionManager
	load          load.Decider
	resultSize    *metrics.ResultSize
	opts          options
}

type options struct {
	maxComplexity         uint64
	maxDepth              int
	maxFirst              int
	maxSkip               int
	queryTimeout          time.Duration
	allowDeploymentChange bool
}

// Option configures process-wide runner defaults.
type Option func(*options)

// WithMaxComplexity caps the cost score of admitted queries. Zero
// means unbounded.
func WithMaxComplexity(n uint64) Option { return func(o *options) { o.maxComplexity = n } }

// WithMaxDepth caps query nesting depth.
func WithMaxDepth(n int) Option { return func(o *options) { o.maxDepth = n } }

// WithMaxFirst caps the `first` pagination argument.
func WithMaxFirst(n int) Option { return func(o *options) { o.maxFirst = n } }

// WithMaxSkip caps the `skip` pagination argument.
func WithMaxSkip(n int) Option { return func(o *options) { o.maxSkip = n } }

// WithQueryTimeout bounds each partition's execution. Zero means no
// deadline.
func WithQueryTimeout(d time.Duration) Option { return func(o *options) { o.queryTimeout = d } }

// WithoutConsistencyCheck disables the post-execution reorg guard.
// Meant for controlled test and operational scenarios only.
func WithoutConsistencyCheck() Option { return func(o *options) { o.allowDeploymentChange = true } }

// Limits are per-call overrides of the runner's default bounds; nil
// fields fall back to the configured defaults.
type Limits struct {
	MaxComplexity *uint64
	MaxDepth      *int
	MaxFirst      *int
	MaxSkip       *int
}

// New creates a query runner. The result-size metrics are registered
// on reg and live for the runner's lifetime.
func New(
	log *zap.SugaredLogger,
	storeMgr store.Manager,
	eng engine.Engine,
	subEng engine.SubscriptionEngine,
	subscriptions engine.SubscriptionManager,
	decider load.Decider,
	reg prometheus.Registerer,
	opts ...Option,
) *Runner {
	o := options{
		maxDepth: 255,
		maxFirst: 1000,
		maxSkip:  100000,
	}
	for _, f := range opts {
		f(&o)
	}
	return &Runner{
		log:           log.Named("runner"),
		store:         storeMgr,
		engine:        eng,
		subEngine:     subEng,
		subscriptions: subscriptions,
		load:          decider,
		resultSize:    metrics.NewResultSize(reg),
		opts:          o,
	}
}

// RunQuery executes a query with the runner's default limits. The
// returned payload always carries either data, errors, or both; all
// recoverable failures are folded into it.
func (r *Runner) RunQuery(ctx context.Context, req query.Request, target store.Target) *query.Results {
	return r.RunQueryWithLimits(ctx, req, target, Limits{})
}

// RunQueryWithLimits executes a query with per-call limit overrides.
func (r *Runner) RunQueryWithLimits(ctx context.Context, req query.Request, target store.Target, limits Limits) *query.Results {
	return r.execute(ctx, req, target, limits, nil)
}

// ResultSize exposes the process-wide result-size recorder.
func (r *Runner) ResultSize() *metrics.ResultSize { return r.resultSize }

func (r *Runner) limits(l Limits) (maxComplexity uint64, maxDepth, maxFirst, maxSkip int) {
	maxComplexity = r.opts.maxComplexity
	maxDepth = r.opts.maxDepth
	maxFirst = r.opts.maxFirst
	maxSkip = r.opts.maxSkip
	if l.MaxComplexity != nil {
		maxComplexity = *l.MaxComplexity
	}
	if l.MaxDepth != nil {
		maxDepth = *l.MaxDepth
	}
	if l.MaxFirst != nil {
		maxFirst = *l.MaxFirst
	}
	if l.MaxSkip != nil {
		maxSkip = *l.MaxSkip
	}
	return
}
