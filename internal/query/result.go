package query

import (
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Result is one partial result: the data resolved for a selection
// subset plus any errors raised while resolving it.
type Result struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors gqlerror.List  `json:"errors,omitempty"`

	// Weight is the result's size in abstract weight units, recorded
	// by the result-size metrics on success.
	Weight uint64 `json:"-"`
}

// DataResult wraps resolved data in a Result.
func DataResult(data map[string]any) *Result {
	return &Result{Data: data}
}

// ErrorResult wraps errors in a data-less Result.
func ErrorResult(errs ...error) *Result {
	r := &Result{}
	for _, err := range errs {
		r.Errors = append(r.Errors, asErrorList(err)...)
	}
	return r
}

// HasErrors reports whether any error was recorded.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// Results accumulates partial results from successive block-constraint
// partitions into one response payload. Appending keeps union
// semantics: later data and errors add to earlier ones, nothing is
// replaced.
type Results struct {
	results []*Result
}

// NewResults returns an empty accumulator.
func NewResults() *Results { return &Results{} }

// ResultsFrom wraps a single partial result.
func ResultsFrom(r *Result) *Results {
	rs := NewResults()
	rs.Append(r)
	return rs
}

// ResultsFromError wraps an error as a response payload.
func ResultsFromError(err error) *Results {
	return ResultsFrom(ErrorResult(err))
}

// Append adds one partition's result.
func (rs *Results) Append(r *Result) {
	if r != nil {
		rs.results = append(rs.results, r)
	}
}

// Len reports how many partial results were appended.
func (rs *Results) Len() int { return len(rs.results) }

// First returns the first partial result, nil when empty.
func (rs *Results) First() *Result {
	if len(rs.results) == 0 {
		return nil
	}
	return rs.results[0]
}

// HasErrors reports whether any appended result carries errors.
func (rs *Results) HasErrors() bool {
	for _, r := range rs.results {
		if r.HasErrors() {
			return true
		}
	}
	return false
}

// Errors returns all accumulated errors in append order.
func (rs *Results) Errors() gqlerror.List {
	var errs gqlerror.List
	for _, r := range rs.results {
		errs = append(errs, r.Errors...)
	}
	return errs
}

// Data merges the data of all appended results into one map, nil when
// no result produced data. Root keys are disjoint across partitions
// because each root field belongs to exactly one.
func (rs *Results) Data() map[string]any {
	var data map[string]any
	for _, r := range rs.results {
		if r.Data == nil {
			continue
		}
		if data == nil {
			data = make(map[string]any, len(r.Data))
		}
		for k, v := range r.Data {
			data[k] = v
		}
	}
	return data
}

// Weight sums the weights of all appended results.
func (rs *Results) Weight() uint64 {
	var w uint64
	for _, r := range rs.results {
		w += r.Weight
	}
	return w
}

// MarshalJSON renders the merged payload in the GraphQL response
// shape. Data is omitted entirely when no partition produced any, so
// request-level failures serialize as a bare errors list.
func (rs *Results) MarshalJSON() ([]byte, error) {
	payload := struct {
		Data   map[string]any `json:"data,omitempty"`
		Errors gqlerror.List  `json:"errors,omitempty"`
	}{
		Data:   rs.Data(),
		Errors: rs.Errors(),
	}
	return json.Marshal(payload)
}
