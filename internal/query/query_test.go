package query

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/chainql/internal/language"
	store "github.com/hanpama/chainql/internal/store"
)

const testSDL = `
input Block_height { number: Int hash: String number_gte: Int }
enum _SubgraphErrorPolicy_ { allow deny }
type Token { id: ID! symbol: String pair: Pair }
type Pair { id: ID! token0: Token token1: Token }
type Query {
  tokens(first: Int, skip: Int, block: Block_height, subgraphError: _SubgraphErrorPolicy_): [Token!]!
  pairs(first: Int, skip: Int, block: Block_height, subgraphError: _SubgraphErrorPolicy_): [Pair!]!
}
type Mutation { noop: Boolean }
type Subscription { tokens(first: Int): [Token!]! }
`

func testSchema(t *testing.T) *language.Schema {
	t.Helper()
	sch, err := language.LoadSchema("test", testSDL)
	if err != nil {
		t.Fatalf("loading schema: %v", err)
	}
	return sch
}

func mustQuery(t *testing.T, text string, vars map[string]any) *Query {
	t.Helper()
	q, err := New(testSchema(t), "testnet", Request{Text: text, Variables: vars}, 0, 255)
	if err != nil {
		t.Fatalf("New(%q): %v", text, err)
	}
	return q
}

func TestNew(t *testing.T) {
	t.Run("valid query", func(t *testing.T) {
		q := mustQuery(t, `{ tokens { id } }`, nil)
		if q.IsSubscription() {
			t.Fatal("query reported as subscription")
		}
		if q.ShapeHash == 0 {
			t.Fatal("shape hash not computed")
		}
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := New(testSchema(t), "testnet", Request{Text: `{ tokens {`}, 0, 255)
		if err == nil {
			t.Fatal("expected a parse error")
		}
		if _, ok := err.(gqlerror.List); !ok {
			t.Fatalf("error is %T, want gqlerror.List", err)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		if _, err := New(testSchema(t), "testnet", Request{Text: `{ nope { id } }`}, 0, 255); err == nil {
			t.Fatal("expected a validation error")
		}
	})

	t.Run("mutation rejected", func(t *testing.T) {
		_, err := New(testSchema(t), "testnet", Request{Text: `mutation { noop }`}, 0, 255)
		if err == nil || !contains(err, "mutations are not supported") {
			t.Fatalf("got %v, want mutation rejection", err)
		}
	})

	t.Run("missing operation name", func(t *testing.T) {
		text := `query A { tokens { id } } query B { pairs { id } }`
		if _, err := New(testSchema(t), "testnet", Request{Text: text}, 0, 255); err == nil {
			t.Fatal("expected an operation resolution error")
		}
		q, err := New(testSchema(t), "testnet", Request{Text: text, OperationName: "B"}, 0, 255)
		if err != nil {
			t.Fatalf("New with operation name: %v", err)
		}
		if got := q.SelectionSet()[0].(*language.Field).Name; got != "pairs" {
			t.Fatalf("resolved operation selects %q, want pairs", got)
		}
	})

	t.Run("subscription detected", func(t *testing.T) {
		q := mustQuery(t, `subscription { tokens { id } }`, nil)
		if !q.IsSubscription() {
			t.Fatal("subscription not reported as such")
		}
	})

	t.Run("depth limit", func(t *testing.T) {
		text := `{ tokens { pair { token0 { id } } } }`
		if _, err := New(testSchema(t), "testnet", Request{Text: text}, 0, 3); err == nil {
			t.Fatal("expected a depth error")
		}
		if _, err := New(testSchema(t), "testnet", Request{Text: text}, 0, 4); err != nil {
			t.Fatalf("depth 4 should pass: %v", err)
		}
	})

	t.Run("complexity limit", func(t *testing.T) {
		text := `{ tokens(first: 100) { id symbol } }`
		if _, err := New(testSchema(t), "testnet", Request{Text: text}, 200, 255); err == nil {
			t.Fatal("expected a complexity error")
		}
		if _, err := New(testSchema(t), "testnet", Request{Text: text}, 201, 255); err != nil {
			t.Fatalf("complexity 201 should pass: %v", err)
		}
	})
}

func TestComplexity(t *testing.T) {
	cases := []struct {
		name string
		text string
		vars map[string]any
		want uint64
	}{
		{name: "bare field", text: `{ tokens { id } }`, want: 2},
		{name: "two leaves", text: `{ tokens { id symbol } }`, want: 3},
		{name: "first multiplies children", text: `{ tokens(first: 10) { id symbol } }`, want: 21},
		{name: "first of one", text: `{ tokens(first: 1) { id } }`, want: 2},
		{name: "variable first", text: `query ($n: Int) { tokens(first: $n) { id } }`, vars: map[string]any{"n": 5}, want: 6},
		{name: "nested first", text: `{ pairs(first: 2) { token0 { id } } }`, want: 5},
		{name: "two roots", text: `{ tokens { id } pairs { id } }`, want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := mustQuery(t, tc.text, tc.vars)
			if q.Complexity != tc.want {
				t.Fatalf("complexity = %d, want %d", q.Complexity, tc.want)
			}
		})
	}
}

func TestShapeHash(t *testing.T) {
	base := mustQuery(t, `{ tokens(first: 10) { id } }`, nil)

	t.Run("stable across argument values", func(t *testing.T) {
		q := mustQuery(t, `{ tokens(first: 500) { id } }`, nil)
		if q.ShapeHash != base.ShapeHash {
			t.Fatal("hash changed with an argument value")
		}
	})

	t.Run("stable across aliases", func(t *testing.T) {
		q := mustQuery(t, `{ mine: tokens(first: 10) { id } }`, nil)
		if q.ShapeHash != base.ShapeHash {
			t.Fatal("hash changed with an alias")
		}
	})

	t.Run("changes with argument names", func(t *testing.T) {
		q := mustQuery(t, `{ tokens(skip: 10) { id } }`, nil)
		if q.ShapeHash == base.ShapeHash {
			t.Fatal("hash ignored the argument name")
		}
	})

	t.Run("changes with selection", func(t *testing.T) {
		q := mustQuery(t, `{ tokens(first: 10) { id symbol } }`, nil)
		if q.ShapeHash == base.ShapeHash {
			t.Fatal("hash ignored the selection")
		}
	})

	t.Run("changes with operation type", func(t *testing.T) {
		q := mustQuery(t, `subscription { tokens(first: 10) { id } }`, nil)
		if q.ShapeHash == base.ShapeHash {
			t.Fatal("hash ignored the operation type")
		}
	})
}

func TestPartitions(t *testing.T) {
	t.Run("implicit latest", func(t *testing.T) {
		parts := mustPartitions(t, `{ tokens { id } pairs { id } }`, nil)
		if len(parts) != 1 {
			t.Fatalf("got %d partitions, want 1", len(parts))
		}
		if parts[0].Constraint != store.LatestBlock() {
			t.Fatalf("constraint = %+v, want latest", parts[0].Constraint)
		}
		if got := fieldNames(parts[0].Selection); !cmp.Equal(got, []string{"tokens", "pairs"}) {
			t.Fatalf("selection = %v", got)
		}
		if parts[0].Policy != PolicyDeny {
			t.Fatal("default policy must be deny")
		}
	})

	t.Run("grouped by constraint in first-appearance order", func(t *testing.T) {
		text := `{
			a: tokens(block: {number: 7}) { id }
			b: pairs { id }
			c: pairs(block: {number: 7}) { id }
		}`
		parts := mustPartitions(t, text, nil)
		if len(parts) != 2 {
			t.Fatalf("got %d partitions, want 2", len(parts))
		}
		if parts[0].Constraint != store.AtNumber(7) {
			t.Fatalf("first constraint = %+v", parts[0].Constraint)
		}
		if got := fieldNames(parts[0].Selection); !cmp.Equal(got, []string{"tokens", "pairs"}) {
			t.Fatalf("first partition selects %v", got)
		}
		if parts[1].Constraint != store.LatestBlock() {
			t.Fatalf("second constraint = %+v", parts[1].Constraint)
		}
	})

	t.Run("policy splits otherwise equal constraints", func(t *testing.T) {
		text := `{
			tokens(subgraphError: allow) { id }
			pairs { id }
		}`
		parts := mustPartitions(t, text, nil)
		if len(parts) != 2 {
			t.Fatalf("got %d partitions, want 2", len(parts))
		}
		if parts[0].Policy != PolicyAllow || parts[1].Policy != PolicyDeny {
			t.Fatalf("policies = %v, %v", parts[0].Policy, parts[1].Policy)
		}
	})

	t.Run("hash and number_gte constraints", func(t *testing.T) {
		text := `{
			tokens(block: {hash: "0xabc"}) { id }
			pairs(block: {number_gte: 12}) { id }
		}`
		parts := mustPartitions(t, text, nil)
		if len(parts) != 2 {
			t.Fatalf("got %d partitions, want 2", len(parts))
		}
		if parts[0].Constraint != store.AtHash("0xabc") {
			t.Fatalf("first constraint = %+v", parts[0].Constraint)
		}
		if parts[1].Constraint != store.NumberAtLeast(12) {
			t.Fatalf("second constraint = %+v", parts[1].Constraint)
		}
	})

	t.Run("variable block number", func(t *testing.T) {
		text := `query ($b: Int) { tokens(block: {number: $b}) { id } }`
		parts := mustPartitions(t, text, map[string]any{"b": 42})
		if parts[0].Constraint != store.AtNumber(42) {
			t.Fatalf("constraint = %+v", parts[0].Constraint)
		}
	})

	t.Run("empty block object rejected", func(t *testing.T) {
		q := mustQuery(t, `{ tokens(block: {}) { id } }`, nil)
		if _, err := q.Partitions(); err == nil {
			t.Fatal("expected an error for an empty block object")
		}
	})

	t.Run("fragments flatten into the root", func(t *testing.T) {
		text := `
			{ ...roots }
			fragment roots on Query {
				tokens(block: {number: 3}) { id }
				pairs { id }
			}`
		parts := mustPartitions(t, text, nil)
		if len(parts) != 2 {
			t.Fatalf("got %d partitions, want 2", len(parts))
		}
	})
}

func mustPartitions(t *testing.T, text string, vars map[string]any) []Partition {
	t.Helper()
	parts, err := mustQuery(t, text, vars).Partitions()
	if err != nil {
		t.Fatalf("Partitions(%q): %v", text, err)
	}
	return parts
}

func fieldNames(sel language.SelectionSet) []string {
	var names []string
	for _, s := range sel {
		if f, ok := s.(*language.Field); ok {
			names = append(names, f.Name)
		}
	}
	return names
}

func contains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}
