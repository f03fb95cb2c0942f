package domain

import "errors"

var (
	// ErrInvalidAmount is returned when an order amount is below the minimum
	// payment threshold.
	ErrInvalidAmount = errors.New("amount below minimum")
	// ErrUnsupportedAsset is returned when creating an order for a token that
	// is not in the supported-asset registry.
	ErrUnsupportedAsset = errors.New("token not supported")
	// ErrInvalidAsset is returned when a token operation is requested for the
	// native asset.
	ErrInvalidAsset = errors.New("invalid token asset")
	// ErrInvalidPaymentMethod is returned when paying a native order with
	// tokens or vice versa.
	ErrInvalidPaymentMethod = errors.New("payment method does not match order")
	// ErrInsufficientPayment is returned when the transferred native amount
	// does not cover the order amount.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrInsufficientAllowance is returned when the buyer did not authorize the
	// ledger to pull the order amount.
	ErrInsufficientAllowance = errors.New("token allowance too low")
	// ErrInsufficientBalance is returned when the accounted balance of an asset
	// cannot cover a refund.
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	// ErrZeroBalance is returned when sweeping an asset with nothing accounted.
	ErrZeroBalance = errors.New("no balance to withdraw")
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotPending       = errors.New("order is not pending")
	ErrOrderNotCompleted     = errors.New("order is not completed")
	ErrOrderNotRefundPending = errors.New("order is not pending refund")
)

var (
	// ErrNotOwner is returned when a non-owner calls an owner-only operation.
	ErrNotOwner = errors.New("only owner can call this function")
	// ErrNotOrderOwner is returned when a caller acts on another buyer's order.
	ErrNotOrderOwner = errors.New("not the order owner")
)
