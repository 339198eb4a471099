package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/Xebarter/Tina-s-Bakery-sub000/providers"
)

// ErrorKind classifies a ServiceError.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindNetwork     ErrorKind = "network"
	KindGateway     ErrorKind = "gateway"
	KindPersistence ErrorKind = "persistence"
	KindState       ErrorKind = "state"
	KindNotFound    ErrorKind = "not_found"
)

// FieldError names one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ServiceError is a typed error with an HTTP status code and the next steps
// offered to the customer.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Fields     []FieldError
	Actions    []string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewValidationError reports input the customer has to correct.
func NewValidationError(message string, fields ...FieldError) *ServiceError {
	return &ServiceError{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Fields:     fields,
		Actions:    []string{models.ActionEditBilling},
	}
}

// NewNetworkError reports a transport failure that is safe to retry.
func NewNetworkError(message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindNetwork,
		StatusCode: http.StatusServiceUnavailable,
		Message:    message,
		Actions:    []string{models.ActionRetry},
		Err:        err,
	}
}

// NewGatewayError reports a request the payment gateway rejected.
func NewGatewayError(message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindGateway,
		StatusCode: http.StatusBadGateway,
		Message:    message,
		Actions:    []string{models.ActionEditBilling, models.ActionContactSupport},
		Err:        err,
	}
}

// NewPersistenceError reports a failed read or write against a backing store.
func NewPersistenceError(message string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindPersistence,
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Actions:    []string{models.ActionRetry},
		Err:        err,
	}
}

// NewStateError reports a missing or inconsistent bridge record.
func NewStateError(message string) *ServiceError {
	return &ServiceError{
		Kind:       KindState,
		StatusCode: http.StatusConflict,
		Message:    message,
		Actions:    []string{models.ActionGoHome, models.ActionContactSupport},
	}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Message:    message,
		Actions:    []string{models.ActionGoHome},
	}
}

// fromGatewayFailure maps a payment gateway client error onto the taxonomy.
func fromGatewayFailure(err error) *ServiceError {
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) {
		msg := gwErr.Message
		if msg == "" {
			msg = "The payment provider rejected the request"
		}
		return NewGatewayError(msg, err)
	}
	var netErr *providers.NetworkError
	if errors.As(err, &netErr) {
		return NewNetworkError("Could not reach the payment provider, please try again", err)
	}
	return NewNetworkError("Payment provider request failed, please try again", err)
}
