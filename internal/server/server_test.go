package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	inmem "github.com/hanpama/chainql/internal/inmem"
	load "github.com/hanpama/chainql/internal/load"
	runner "github.com/hanpama/chainql/internal/runner"
	store "github.com/hanpama/chainql/internal/store"
)

const testSDL = `
input Block_height { number: Int hash: String number_gte: Int }
enum _SubgraphErrorPolicy_ { allow deny }
type Token { id: ID! symbol: String }
type Query {
  tokens(first: Int, skip: Int, block: Block_height, subgraphError: _SubgraphErrorPolicy_): [Token!]!
}
`

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	st := inmem.NewStore()
	st.Add(&inmem.Deployment{
		Name:      "example",
		Network:   "devnet",
		SchemaSDL: testSDL,
		State:     store.DeploymentState{MaxReorgDepth: 16, LatestBlock: 100},
		Tables: map[string][]inmem.Row{
			"tokens": {
				{Block: 10, Value: map[string]any{"id": "t1", "symbol": "GNO"}},
				{Block: 42, Value: map[string]any{"id": "t2", "symbol": "DAI"}},
			},
		},
	})
	eng := inmem.NewEngine()
	r := runner.New(zap.NewNop().Sugar(), st, eng, eng, st, load.NopDecider{}, prometheus.NewRegistry())
	return New(r, opts...)
}

type payload struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) payload {
	t.Helper()
	var p payload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return p
}

func TestPostQuery(t *testing.T) {
	h := newTestHandler(t)
	body := `{"query": "{ tokens { id symbol } }"}`
	req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	p := decode(t, rec)
	if len(p.Errors) != 0 {
		t.Fatalf("errors: %v", p.Errors)
	}
	tokens, ok := p.Data["tokens"].([]any)
	if !ok || len(tokens) != 2 {
		t.Fatalf("data = %v", p.Data)
	}
}

func TestGetQuery(t *testing.T) {
	h := newTestHandler(t)
	target := "/subgraphs/name/example?query=" + url.QueryEscape(`{ tokens(block: {number: 20}) { id } }`)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	p := decode(t, rec)
	if len(p.Errors) != 0 {
		t.Fatalf("errors: %v", p.Errors)
	}
	// Only the row indexed at block 10 is visible at block 20.
	if tokens := p.Data["tokens"].([]any); len(tokens) != 1 {
		t.Fatalf("tokens = %v", tokens)
	}
}

func TestQueryVariables(t *testing.T) {
	h := newTestHandler(t)
	body := `{"query": "query ($n: Int) { tokens(first: $n) { id } }", "variables": {"n": 1}}`
	req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	p := decode(t, rec)
	if len(p.Errors) != 0 {
		t.Fatalf("errors: %v", p.Errors)
	}
	if tokens := p.Data["tokens"].([]any); len(tokens) != 1 {
		t.Fatalf("tokens = %v", tokens)
	}
}

func TestUnknownDeployment(t *testing.T) {
	h := newTestHandler(t)
	body := `{"query": "{ tokens { id } }"}`
	req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/nope", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	p := decode(t, rec)
	if len(p.Errors) == 0 || !strings.Contains(p.Errors[0].Message, "not found") {
		t.Fatalf("errors = %v", p.Errors)
	}
}

func TestNotFoundOutsidePrefix(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/", "/subgraphs/name/", "/subgraphs/name/a/b", "/other"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"query": "{ tokens { id } }"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status for %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPut, "/subgraphs/name/example", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestBadRequestBodies(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name string
		body string
	}{
		{name: "invalid JSON", body: `{`},
		{name: "missing query", body: `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(16))
	body := `{"query": "{ tokens { id symbol } }"}`
	req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		h := newTestHandler(t, WithCORS("*"))
		req := httptest.NewRequest(http.MethodOptions, "/subgraphs/name/example", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
			t.Fatalf("Allow-Headers = %q", got)
		}
	})

	t.Run("origin allow list", func(t *testing.T) {
		h := newTestHandler(t, WithCORS("https://app.example.com"))
		req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(`{"query": "{ tokens { id } }"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Fatalf("Allow-Origin = %q", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		h := newTestHandler(t, WithCORS("https://app.example.com"))
		req := httptest.NewRequest(http.MethodPost, "/subgraphs/name/example", strings.NewReader(`{"query": "{ tokens { id } }"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("Allow-Origin = %q, want unset", got)
		}
	})
}
