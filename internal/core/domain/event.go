package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType is the name of a ledger notification. Values are also used as
// webhook topics.
type EventType string

const (
	EventPaymentPending   EventType = "PaymentPending"
	EventPaymentReceived  EventType = "PaymentReceived"
	EventPaymentCompleted EventType = "PaymentCompleted"
	EventPaymentFailed    EventType = "PaymentFailed"
	EventRefundPending    EventType = "RefundPending"
	EventRefundSuccessful EventType = "RefundSuccessful"
	EventPaymentRefunded  EventType = "PaymentRefunded"
	EventPaymentSent      EventType = "PaymentSent"

	// CancelReason is the reason attached to PaymentFailed events emitted for
	// orders cancelled by their buyer.
	CancelReason = "Cancelled by buyer"
)

// EventTypes lists all known event types.
var EventTypes = []EventType{
	EventPaymentPending,
	EventPaymentReceived,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventRefundPending,
	EventRefundSuccessful,
	EventPaymentRefunded,
	EventPaymentSent,
}

// IsValidEventType returns whether the given string names a known event.
func IsValidEventType(str string) bool {
	for _, t := range EventTypes {
		if string(t) == str {
			return true
		}
	}
	return false
}

// Event is an entry of the ledger's append-only journal. Seq is assigned when
// the event is persisted and is strictly increasing.
// Account is the buyer for order events and the recipient for PaymentSent.
type Event struct {
	Seq       uint64
	Type      EventType
	OrderID   uint64
	Account   common.Address
	Amount    *big.Int
	Asset     common.Address
	Reason    string
	Timestamp int64
}

func newEvent(
	eventType EventType, orderID uint64, account common.Address,
	amount *big.Int, asset common.Address,
) *Event {
	return &Event{
		Type:      eventType,
		OrderID:   orderID,
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		Asset:     asset,
		Timestamp: time.Now().Unix(),
	}
}

func NewPaymentPendingEvent(o *Order) *Event {
	return newEvent(EventPaymentPending, o.ID, o.Buyer, o.Amount, o.Asset())
}

// NewPaymentReceivedEvent returns the event for the funds actually moved into
// custody, that might exceed the order amount for native payments.
func NewPaymentReceivedEvent(o *Order, received *big.Int) *Event {
	return newEvent(EventPaymentReceived, o.ID, o.Buyer, received, o.Asset())
}

func NewPaymentCompletedEvent(o *Order) *Event {
	return newEvent(EventPaymentCompleted, o.ID, o.Buyer, o.Amount, o.Asset())
}

func NewPaymentFailedEvent(o *Order, reason string) *Event {
	e := newEvent(EventPaymentFailed, o.ID, o.Buyer, o.Amount, o.Asset())
	e.Reason = reason
	return e
}

func NewRefundPendingEvent(o *Order) *Event {
	return newEvent(EventRefundPending, o.ID, o.Buyer, o.Amount, o.Asset())
}

func NewRefundSuccessfulEvent(o *Order) *Event {
	return newEvent(EventRefundSuccessful, o.ID, o.Buyer, o.Amount, o.Asset())
}

func NewPaymentRefundedEvent(o *Order) *Event {
	return newEvent(EventPaymentRefunded, o.ID, o.Buyer, o.Amount, o.Asset())
}

// NewPaymentSentEvent returns the event for a sweep of the whole balance of
// an asset to the given recipient. It is not related to any order.
func NewPaymentSentEvent(
	to common.Address, amount *big.Int, asset common.Address,
) *Event {
	return newEvent(EventPaymentSent, 0, to, amount, asset)
}

// EventRepository is the abstraction for any kind of database intended to
// persist the journal of ledger events.
type EventRepository interface {
	// AddEvents appends the given events to the journal in order, assigning
	// their sequence numbers.
	AddEvents(ctx context.Context, events ...*Event) error
	// GetEvents returns at most limit events with sequence number greater
	// than or equal to fromSeq. A non positive limit means no limit.
	GetEvents(ctx context.Context, fromSeq uint64, limit int) ([]*Event, error)
}
