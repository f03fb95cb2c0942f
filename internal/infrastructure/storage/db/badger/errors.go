package dbbadger

import "errors"

var (
	// ErrOrderAlreadyExists is returned when adding an order with an id that
	// is already taken.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrInvalidAmount is returned when a stored amount cannot be decoded.
	ErrInvalidAmount = errors.New("invalid stored amount")
)
