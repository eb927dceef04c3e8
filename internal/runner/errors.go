package runner

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ErrDeploymentReverted reports that the deployment's chain was
// reorganized past the query's observation window while the query was
// executing, so the composed result can not be trusted.
var ErrDeploymentReverted = errors.New("the deployment was reorganized while the query was executing")

var errNotASubscription = errors.New("the operation is not a subscription")

// SubscriptionError wraps the query errors that prevented a
// subscription from being set up.
type SubscriptionError struct {
	Errors gqlerror.List
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription error: %s", e.Errors.Error())
}

func (e *SubscriptionError) Unwrap() error { return e.Errors }

func subscriptionError(err error) *SubscriptionError {
	var list gqlerror.List
	switch e := err.(type) {
	case gqlerror.List:
		list = e
	case *gqlerror.Error:
		list = gqlerror.List{e}
	default:
		list = gqlerror.List{gqlerror.Wrap(err)}
	}
	return &SubscriptionError{Errors: list}
}
