package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrProductUnavailable = errors.New("one or more products are unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrAlreadyProcessed   = errors.New("payment already processed")
	ErrForbidden          = errors.New("not allowed to view this order")
)

// ValidationError is a malformed-payload error (400-class).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError names the offending product (400-class).
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductName)
}

// GatewayError carries the upstream status and body of a failed processor
// call (502-class). StatusCode is zero on transport errors.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }
