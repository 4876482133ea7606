package db

import "fmt"

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrAlreadyExists = fmt.Errorf("already exists")
	ErrInvalidData   = fmt.Errorf("invalid data provided")
	// ErrInvalidTransition is returned when an order status update would
	// move backwards or skip a state in the order lifecycle.
	ErrInvalidTransition = fmt.Errorf("invalid order status transition")
)
