package inmem

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"

	engine "github.com/hanpama/chainql/internal/engine"
	language "github.com/hanpama/chainql/internal/language"
	query "github.com/hanpama/chainql/internal/query"
)

// Engine resolves root fields from the fixture tables of an inmem
// Store. It implements both engine.Engine and
// engine.SubscriptionEngine.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Execute implements engine.Engine. Each root field reads its table at
// the partition's block, honoring first/skip pagination, and projects
// the requested subfields.
func (e *Engine) Execute(ctx context.Context, q *query.Query, sel language.SelectionSet, ectx *engine.Context, opts engine.Options) *query.Result {
	if err := ctx.Err(); err != nil {
		return query.ErrorResult(gqlerror.Errorf("query was canceled: %s", err))
	}
	if !opts.Deadline.IsZero() && time.Now().After(opts.Deadline) {
		return query.ErrorResult(gqlerror.Errorf("query timed out"))
	}
	h, ok := ectx.Handle.(*handle)
	if !ok {
		return query.ErrorResult(gqlerror.Errorf("engine requires an inmem store handle"))
	}

	res := &query.Result{Data: make(map[string]any)}
	for _, s := range sel {
		f, ok := s.(*language.Field)
		if !ok {
			continue
		}
		name := f.Alias
		if name == "" {
			name = f.Name
		}

		first, skip, err := pagination(f, q.Variables, opts)
		if err != nil {
			res.Errors = append(res.Errors, err)
			res.Data[name] = nil
			continue
		}

		rows := h.rows(f.Name, ectx.Block.Number)
		if skip < len(rows) {
			rows = rows[skip:]
		} else {
			rows = nil
		}
		if first < len(rows) {
			rows = rows[:first]
		}

		list := make([]any, 0, len(rows))
		for _, row := range rows {
			list = append(list, project(f.SelectionSet, row.Value))
			res.Weight += uint64(1 + len(f.SelectionSet))
		}
		res.Data[name] = list
	}
	return res
}

// Subscribe implements engine.SubscriptionEngine. Every store event
// for the deployment re-resolves the subscription's selection at the
// latest block and emits one result. The handle is released when the
// stream ends.
func (e *Engine) Subscribe(ctx context.Context, q *query.Query, opts engine.SubscriptionOptions) (<-chan *query.Result, error) {
	h, ok := opts.Handle.(*handle)
	if !ok {
		return nil, fmt.Errorf("engine requires an inmem store handle")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("no subscription manager configured")
	}
	events, cancel := opts.Manager.Subscribe(ctx, h.deployment.Name)

	out := make(chan *query.Result)
	go func() {
		defer close(out)
		defer cancel()
		defer h.Release()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				ectx := &engine.Context{Handle: h, Block: blockPtr(ev.Block)}
				res := e.Execute(ctx, q, q.SelectionSet(), ectx, engine.Options{
					MaxFirst: opts.MaxFirst,
					MaxSkip:  opts.MaxSkip,
				})
				if !res.HasErrors() && opts.ResultSize != nil {
					opts.ResultSize.Observe(res.Weight)
				}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// project copies the requested leaf subfields out of a row value; a
// field without a selection set projects the whole row.
func project(sel language.SelectionSet, value map[string]any) map[string]any {
	if len(sel) == 0 {
		return value
	}
	out := make(map[string]any, len(sel))
	for _, s := range sel {
		f, ok := s.(*language.Field)
		if !ok {
			continue
		}
		name := f.Alias
		if name == "" {
			name = f.Name
		}
		out[name] = value[f.Name]
	}
	return out
}

func pagination(f *language.Field, vars map[string]any, opts engine.Options) (first, skip int, err *gqlerror.Error) {
	first = 100
	if n, ok, perr := fieldArgInt(f, "first", vars); perr != nil {
		return 0, 0, perr
	} else if ok {
		if opts.MaxFirst > 0 && n > opts.MaxFirst {
			return 0, 0, gqlerror.Errorf("the `first` argument of `%s` must be between 0 and %d", f.Name, opts.MaxFirst)
		}
		first = n
	}
	if n, ok, perr := fieldArgInt(f, "skip", vars); perr != nil {
		return 0, 0, perr
	} else if ok {
		if opts.MaxSkip > 0 && n > opts.MaxSkip {
			return 0, 0, gqlerror.Errorf("the `skip` argument of `%s` must be between 0 and %d", f.Name, opts.MaxSkip)
		}
		skip = n
	}
	return first, skip, nil
}

func fieldArgInt(f *language.Field, name string, vars map[string]any) (int, bool, *gqlerror.Error) {
	arg := f.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return 0, false, nil
	}
	switch arg.Value.Kind {
	case language.IntValue:
		n, err := strconv.Atoi(arg.Value.Raw)
		if err != nil || n < 0 {
			return 0, false, gqlerror.Errorf("invalid `%s` argument of `%s`", name, f.Name)
		}
		return n, true, nil
	case language.Variable:
		switch v := vars[arg.Value.Raw].(type) {
		case int:
			return v, true, nil
		case float64:
			return int(v), true, nil
		}
		return 0, false, gqlerror.Errorf("invalid `%s` argument of `%s`", name, f.Name)
	default:
		return 0, false, gqlerror.Errorf("invalid `%s` argument of `%s`", name, f.Name)
	}
}
