package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when an HTTP request reaches the GraphQL
// endpoint.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted when the HTTP response has been written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
