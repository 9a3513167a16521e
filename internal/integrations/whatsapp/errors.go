package whatsapp

import (
	"errors"
	"fmt"
)

// APIError is a provider rejection: non-2xx status or an "error" object in the body.
type APIError struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api http %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// TransportError means the request never got an HTTP answer (connection, timeout).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "whatsapp transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
