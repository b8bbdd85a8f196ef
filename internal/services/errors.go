package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflicting state")
	ErrForbidden          = errors.New("not a participant of this request")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrGateway            = errors.New("payment gateway error")
	ErrSignature          = errors.New("payment signature verification failed")
	ErrPaymentsDisabled   = errors.New("payments are not configured")
)
