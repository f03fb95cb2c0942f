package inmemory

import "errors"

var (
	// ErrOrderAlreadyExists is returned when adding an order with an id that
	// is already taken.
	ErrOrderAlreadyExists = errors.New("order already exists")
)
