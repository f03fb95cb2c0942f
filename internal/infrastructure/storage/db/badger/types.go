package dbbadger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

type metadata struct {
	NextOrderID  uint64
	NextEventSeq uint64
}

type order struct {
	ID             uint64
	Buyer          string
	Amount         string
	IsTokenPayment bool
	PaymentToken   string
	Status         int
	CreatedAt      int64
	UpdatedAt      int64
}

func newOrder(o *domain.Order) order {
	return order{
		ID:             o.ID,
		Buyer:          o.Buyer.Hex(),
		Amount:         o.Amount.String(),
		IsTokenPayment: o.IsTokenPayment,
		PaymentToken:   o.PaymentToken.Hex(),
		Status:         int(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (o order) toDomain() (*domain.Order, error) {
	amount, err := parseAmount(o.Amount)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", o.ID, err)
	}
	return &domain.Order{
		ID:             o.ID,
		Buyer:          common.HexToAddress(o.Buyer),
		Amount:         amount,
		IsTokenPayment: o.IsTokenPayment,
		PaymentToken:   common.HexToAddress(o.PaymentToken),
		Status:         domain.OrderStatus(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

type buyerOrders struct {
	Buyer    string
	OrderIDs []uint64
}

type balance struct {
	Asset  string
	Amount string
}

type asset struct {
	Asset string
	Index uint64
}

type event struct {
	Seq       uint64
	Type      string
	OrderID   uint64
	Account   string
	Amount    string
	Asset     string
	Reason    string
	Timestamp int64
}

func newEvent(e *domain.Event) event {
	return event{
		Seq:       e.Seq,
		Type:      string(e.Type),
		OrderID:   e.OrderID,
		Account:   e.Account.Hex(),
		Amount:    e.Amount.String(),
		Asset:     e.Asset.Hex(),
		Reason:    e.Reason,
		Timestamp: e.Timestamp,
	}
}

func (e event) toDomain() (*domain.Event, error) {
	amount, err := parseAmount(e.Amount)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", e.Seq, err)
	}
	return &domain.Event{
		Seq:       e.Seq,
		Type:      domain.EventType(e.Type),
		OrderID:   e.OrderID,
		Account:   common.HexToAddress(e.Account),
		Amount:    amount,
		Asset:     common.HexToAddress(e.Asset),
		Reason:    e.Reason,
		Timestamp: e.Timestamp,
	}, nil
}

func parseAmount(str string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(str, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, str)
	}
	return amount, nil
}
