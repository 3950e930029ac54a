package interact

import (
	"errors"
	"fmt"
)

var ErrExchangeInFlight = errors.New("interact: exchange already in flight")

const genericServerError = "Server error"

// ServerError is a response the backend produced but the client cannot
// use: a non-2xx status or a body that is not a valid result.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return genericServerError
}

// TransportError means no usable response arrived: DNS, connect, TLS,
// timeout or cancellation.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
