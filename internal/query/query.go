package query

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/chainql/internal/language"
)

// Request is a raw query as received from a client.
type Request struct {
	Text          string
	OperationName string
	Variables     map[string]any
}

// Query is the validated internal form of a request, bound to one
// deployment's API schema. It is immutable after construction.
type Query struct {
	Request

	Schema  *language.Schema
	Network string

	doc       *language.QueryDocument
	operation *language.OperationDefinition

	// ShapeHash is a stable fingerprint of the query shape; argument
	// values do not contribute, so differently-parameterized runs of
	// the same query share a hash.
	ShapeHash uint64

	// Complexity is the cost score the query was admitted with.
	Complexity uint64
}

// New parses and validates req against schema and enforces the given
// bounds. maxComplexity of zero means unbounded. The returned error is
// a gqlerror.List suitable for returning to clients verbatim.
func New(schema *language.Schema, network string, req Request, maxComplexity uint64, maxDepth int) (*Query, error) {
	doc, err := language.ParseQuery(req.Text)
	if err != nil {
		return nil, asErrorList(err)
	}
	if err := language.Validate(schema, doc); err != nil {
		return nil, asErrorList(err)
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return nil, gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}
	}
	if op.Operation == language.Mutation {
		return nil, gqlerror.List{gqlerror.Errorf("mutations are not supported")}
	}

	if depth := documentDepth(doc, op); depth > maxDepth {
		return nil, gqlerror.List{gqlerror.Errorf("query has depth %d, exceeding the depth limit of %d", depth, maxDepth)}
	}
	complexity := documentComplexity(doc, op, req.Variables)
	if maxComplexity > 0 && complexity > maxComplexity {
		return nil, gqlerror.List{gqlerror.Errorf("query potentially returns %d entities or more, exceeding the complexity limit of %d", complexity, maxComplexity)}
	}

	return &Query{
		Request:    req,
		Schema:     schema,
		Network:    network,
		doc:        doc,
		operation:  op,
		ShapeHash:  shapeHash(doc, op),
		Complexity: complexity,
	}, nil
}

// IsSubscription reports whether the underlying operation is a
// subscription.
func (q *Query) IsSubscription() bool {
	return q.operation.Operation == language.Subscription
}

// SelectionSet returns the full root selection set of the operation.
func (q *Query) SelectionSet() language.SelectionSet {
	return q.operation.SelectionSet
}

func asErrorList(err error) gqlerror.List {
	switch e := err.(type) {
	case gqlerror.List:
		return e
	case *gqlerror.Error:
		return gqlerror.List{e}
	default:
		return gqlerror.List{gqlerror.Wrap(err)}
	}
}
