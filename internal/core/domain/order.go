package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus represents the different statuses that an order can assume.
// Numeric values are part of the wire format and must not be reordered.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusCompleted
	OrderStatusRefunded
	OrderStatusFailed
	OrderStatusRefundPending
)

var orderStatusToString = map[OrderStatus]string{
	OrderStatusPending:       "Pending",
	OrderStatusCompleted:     "Completed",
	OrderStatusRefunded:      "Refunded",
	OrderStatusFailed:        "Failed",
	OrderStatusRefundPending: "RefundPending",
}

func (s OrderStatus) String() string {
	if str, ok := orderStatusToString[s]; ok {
		return str
	}
	return "Unknown"
}

// IsTerminal returns whether no further transition is allowed from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusRefunded || s == OrderStatusFailed
}

// Order is the data structure representing a buyer's intent to pay a fixed
// amount in a fixed asset.
type Order struct {
	ID             uint64
	Buyer          common.Address
	Amount         *big.Int
	IsTokenPayment bool
	PaymentToken   common.Address
	Status         OrderStatus
	CreatedAt      int64
	UpdatedAt      int64
}

// NewOrder returns a Pending order for the given buyer. The order is paid in
// native currency if asset is the NativeAsset, with tokens otherwise.
func NewOrder(
	id uint64, buyer common.Address, amount *big.Int, asset common.Address,
) *Order {
	now := time.Now().Unix()
	return &Order{
		ID:             id,
		Buyer:          buyer,
		Amount:         new(big.Int).Set(amount),
		IsTokenPayment: !IsNativeAsset(asset),
		PaymentToken:   asset,
		Status:         OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsEmpty returns whether the order is the sentinel returned for unknown ids.
func (o *Order) IsEmpty() bool {
	return o == nil || o.Buyer == (common.Address{})
}

// Asset returns the identifier of the asset the order is paid with.
func (o *Order) Asset() common.Address {
	if !o.IsTokenPayment {
		return NativeAsset
	}
	return o.PaymentToken
}

func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

func (o *Order) IsRefundPending() bool {
	return o.Status == OrderStatusRefundPending
}

func (o *Order) IsRefunded() bool {
	return o.Status == OrderStatusRefunded
}

func (o *Order) IsFailed() bool {
	return o.Status == OrderStatusFailed
}

// Complete brings a Pending order to the Completed status.
func (o *Order) Complete() error {
	if !o.IsPending() {
		return ErrOrderNotPending
	}
	o.setStatus(OrderStatusCompleted)
	return nil
}

// Cancel brings a Pending order to the Failed status.
func (o *Order) Cancel() error {
	if !o.IsPending() {
		return ErrOrderNotPending
	}
	o.setStatus(OrderStatusFailed)
	return nil
}

// StartRefund brings a Completed order to the RefundPending status. The
// refund is only approved at this stage, no funds are moved.
func (o *Order) StartRefund() error {
	if !o.IsCompleted() {
		return ErrOrderNotCompleted
	}
	o.setStatus(OrderStatusRefundPending)
	return nil
}

// Refund brings a RefundPending order to the Refunded status.
func (o *Order) Refund() error {
	if !o.IsRefundPending() {
		return ErrOrderNotRefundPending
	}
	o.setStatus(OrderStatusRefunded)
	return nil
}

func (o *Order) setStatus(status OrderStatus) {
	o.Status = status
	o.UpdatedAt = time.Now().Unix()
}
