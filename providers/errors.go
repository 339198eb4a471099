package providers

import "fmt"

// GatewayError is a rejection reported by the gateway itself.
type GatewayError struct {
	HTTPStatus int
	Type       string
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pesapal error %s (status %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("pesapal error (status %d): %s", e.HTTPStatus, e.Message)
}

// NetworkError is a transport failure talking to the gateway.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("pesapal %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }
