// Package load defines the admission-control contract the runner gates
// on. The decision algorithm itself (statistics, thresholds, kill
// lists) lives in the Decider implementation; the runner only consumes
// the outcome, always before any execution work begins.
package load

import "errors"

// ErrTooExpensive rejects a query whose shape is currently considered
// too expensive to serve.
var ErrTooExpensive = errors.New("query too expensive")

// ErrThrottled rejects a query because the service is overloaded.
var ErrThrottled = errors.New("service is overloaded and can not run the query right now")

// Decision is the admission controller's verdict for one query.
type Decision int

const (
	// Proceed admits the query.
	Proceed Decision = iota
	// TooExpensive rejects the query because of its shape.
	TooExpensive
	// Throttle rejects the query because of overall load.
	Throttle
)

// Err converts a decision into the error reported to the caller, nil
// for Proceed.
func (d Decision) Err() error {
	switch d {
	case TooExpensive:
		return ErrTooExpensive
	case Throttle:
		return ErrThrottled
	default:
		return nil
	}
}

// Decider is the admission controller consumed by the runner. Decide
// is called with recent store wait-time statistics, the query's shape
// fingerprint, and its raw text; implementations synchronize
// internally and must be safe for concurrent use.
type Decider interface {
	Decide(stats *MovingStats, shapeHash uint64, query string) Decision
}

// NopDecider admits everything. It is the default wiring when no load
// management is configured.
type NopDecider struct{}

func (NopDecider) Decide(*MovingStats, uint64, string) Decision { return Proceed }
