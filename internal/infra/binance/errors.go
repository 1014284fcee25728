package binance

import (
	"errors"
	"fmt"
)

// InvalidRequestError is a local precondition failure: the request never
// left the process and must not be retried.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// GatewayError is an upstream HTTP or network failure. The client does
// not retry; retry policy belongs to the caller.
type GatewayError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsInvalidRequest reports whether err is a local validation failure.
func IsInvalidRequest(err error) bool {
	var ire *InvalidRequestError
	return errors.As(err, &ire)
}

// IsGatewayError reports whether err is an upstream failure.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
