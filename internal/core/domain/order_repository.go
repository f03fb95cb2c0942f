package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// OrderRepository is the abstraction for any kind of database intended to
// persist Orders and the index of orders by buyer.
type OrderRepository interface {
	// GetNextOrderID returns the id that will be assigned to the next order.
	GetNextOrderID(ctx context.Context) (uint64, error)
	// AddOrder stores a new order, appends its id to the buyer's index and
	// moves the id counter past the order's id.
	AddOrder(ctx context.Context, order *Order) error
	// GetOrder returns the order with the given id, or nil if not found.
	GetOrder(ctx context.Context, orderID uint64) (*Order, error)
	// GetOrderIDsForBuyer returns the ids of the orders created by the given
	// buyer, in creation order.
	GetOrderIDsForBuyer(ctx context.Context, buyer common.Address) ([]uint64, error)
	// UpdateOrder allows to commit multiple changes to the same order in a
	// transactional way.
	UpdateOrder(
		ctx context.Context,
		orderID uint64, updateFn func(o *Order) (*Order, error),
	) error
}
