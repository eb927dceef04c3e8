// Package query builds the runner's internal representation of a
// GraphQL request and defines the result payloads the runner returns.
//
// A raw Request becomes a Query by parsing, validating against the
// deployment's API schema, and enforcing the configured complexity and
// depth bounds. A Query can then be partitioned by block constraint:
// every root field carries an implicit or explicit block pin, and
// fields pinned to the same (block, error-policy) pair execute
// together against one resolved block.
//
// Results keeps the union semantics of GraphQL partial results: data
// and errors from successive partitions both accumulate, later
// partitions never replace earlier ones.
package query
