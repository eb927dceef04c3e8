package query

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/chainql/internal/language"
	store "github.com/hanpama/chainql/internal/store"
)

// ErrorPolicy declares how a partition's execution errors fold into
// the merged result. The set is closed:
//
//   - PolicyDeny: the partition's errors are reported and its data is
//     dropped from the merged payload.
//   - PolicyAllow: the partition's data and errors are both merged.
//
// Either way, later partitions still execute; only the post-execution
// consistency check can fail the call as a whole.
type ErrorPolicy int

const (
	PolicyDeny ErrorPolicy = iota
	PolicyAllow
)

// Partition is one (block constraint, selection subset, error policy)
// unit of execution.
type Partition struct {
	Constraint store.BlockConstraint
	Selection  language.SelectionSet
	Policy     ErrorPolicy
}

type partitionKey struct {
	constraint store.BlockConstraint
	policy     ErrorPolicy
}

// Partitions decomposes the query's root selection set by block
// constraint. Root fields pinned to the same (block, subgraphError)
// pair are grouped into one partition; fields without a `block`
// argument observe the latest indexed block. The result preserves the
// order in which constraints first appear and is never empty for a
// validated query.
func (q *Query) Partitions() ([]Partition, error) {
	fields, err := q.rootFields(q.operation.SelectionSet)
	if err != nil {
		return nil, err
	}

	var order []partitionKey
	groups := make(map[partitionKey]language.SelectionSet)
	for _, f := range fields {
		c, err := q.fieldConstraint(f)
		if err != nil {
			return nil, err
		}
		key := partitionKey{constraint: c, policy: q.fieldPolicy(f)}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	parts := make([]Partition, 0, len(order))
	for _, key := range order {
		parts = append(parts, Partition{
			Constraint: key.constraint,
			Selection:  groups[key],
			Policy:     key.policy,
		})
	}
	return parts, nil
}

// rootFields flattens fragments at the root level into their concrete
// fields, in document order.
func (q *Query) rootFields(sel language.SelectionSet) ([]*language.Field, error) {
	var fields []*language.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *language.Field:
			fields = append(fields, s)
		case *language.InlineFragment:
			sub, err := q.rootFields(s.SelectionSet)
			if err != nil {
				return nil, err
			}
			fields = append(fields, sub...)
		case *language.FragmentSpread:
			frag := q.doc.Fragments.ForName(s.Name)
			if frag == nil {
				return nil, gqlerror.Errorf("fragment %q not defined", s.Name)
			}
			sub, err := q.rootFields(frag.SelectionSet)
			if err != nil {
				return nil, err
			}
			fields = append(fields, sub...)
		}
	}
	return fields, nil
}

// fieldConstraint reads the `block` argument of a root field. The
// argument is an input object with exactly one of `number`, `hash`, or
// `number_gte` set.
func (q *Query) fieldConstraint(f *language.Field) (store.BlockConstraint, error) {
	arg := f.Arguments.ForName("block")
	if arg == nil || arg.Value == nil {
		return store.LatestBlock(), nil
	}
	if arg.Value.Kind != language.ObjectValue {
		return store.BlockConstraint{}, gqlerror.ErrorPosf(arg.Position, "the `block` argument of `%s` must be an object", f.Name)
	}
	for _, child := range arg.Value.Children {
		switch child.Name {
		case "number":
			n, ok := intValue(child.Value, q.Variables)
			if !ok {
				return store.BlockConstraint{}, gqlerror.ErrorPosf(arg.Position, "invalid block number in the `block` argument of `%s`", f.Name)
			}
			return store.AtNumber(n), nil
		case "hash":
			if child.Value.Kind != language.StringValue || child.Value.Raw == "" {
				return store.BlockConstraint{}, gqlerror.ErrorPosf(arg.Position, "invalid block hash in the `block` argument of `%s`", f.Name)
			}
			return store.AtHash(child.Value.Raw), nil
		case "number_gte":
			n, ok := intValue(child.Value, q.Variables)
			if !ok {
				return store.BlockConstraint{}, gqlerror.ErrorPosf(arg.Position, "invalid block number in the `block` argument of `%s`", f.Name)
			}
			return store.NumberAtLeast(n), nil
		}
	}
	return store.BlockConstraint{}, gqlerror.ErrorPosf(arg.Position, "the `block` argument of `%s` must set one of `number`, `hash` or `number_gte`", f.Name)
}

// fieldPolicy reads the `subgraphError` argument; unset or anything
// but `allow` means deny.
func (q *Query) fieldPolicy(f *language.Field) ErrorPolicy {
	arg := f.Arguments.ForName("subgraphError")
	if arg != nil && arg.Value != nil && arg.Value.Kind == language.EnumValue && arg.Value.Raw == "allow" {
		return PolicyAllow
	}
	return PolicyDeny
}
