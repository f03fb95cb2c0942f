package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
	"github.com/tdex-network/escrowd/pkg/stats"
)

// EscrowService defines the methods of the application layer for the escrow
// ledger. Every mutating method takes the verified identity of the caller.
type EscrowService interface {
	CreateOrder(
		ctx context.Context,
		caller common.Address, amount *big.Int, asset common.Address,
	) (uint64, error)
	ProcessNativePayment(
		ctx context.Context, caller common.Address, orderID uint64, value *big.Int,
	) error
	ProcessTokenPayment(
		ctx context.Context, caller common.Address, orderID uint64,
	) error
	CancelOrders(
		ctx context.Context, caller common.Address, orderIDs []uint64,
	) error
	InitiateRefund(
		ctx context.Context, caller common.Address, orderID uint64,
	) error
	ProcessRefund(
		ctx context.Context, caller common.Address, orderID uint64,
	) error
	AddSupportedToken(
		ctx context.Context, caller common.Address, asset common.Address,
	) error
	WithdrawNative(ctx context.Context, caller common.Address) (*big.Int, error)
	WithdrawToken(
		ctx context.Context, caller common.Address, asset common.Address,
	) (*big.Int, error)

	GetOrder(ctx context.Context, orderID uint64) (*domain.Order, error)
	GetBuyerOrders(ctx context.Context, buyer common.Address) ([]uint64, error)
	GetBalance(ctx context.Context, asset common.Address) (*big.Int, error)
	GetAllBalances(ctx context.Context) (map[common.Address]*big.Int, error)
	GetNextOrderID(ctx context.Context) (uint64, error)
	ListSupportedTokens(ctx context.Context) ([]common.Address, error)
	IsSupportedToken(ctx context.Context, asset common.Address) (bool, error)
	GetEvents(
		ctx context.Context, fromSeq uint64, limit int,
	) ([]*domain.Event, error)
	GetInfo() LedgerInfo
}

// LedgerInfo holds the immutable parameters of the ledger.
type LedgerInfo struct {
	Owner          common.Address
	Ledger         common.Address
	MinimumPayment *big.Int
}

// EventPublisher is notified of the events of every committed operation, in
// commit order.
type EventPublisher interface {
	PublishEvents(events []*domain.Event)
}

type escrowService struct {
	repo      ports.RepoManager
	custodian ports.Custodian
	publisher EventPublisher
	metrics   *stats.Metrics

	owner          common.Address
	ledger         common.Address
	minimumPayment *big.Int

	lock *sync.Mutex
}

func NewEscrowService(
	repo ports.RepoManager,
	custodian ports.Custodian,
	publisher EventPublisher,
	metrics *stats.Metrics,
	owner, ledger common.Address,
	minimumPayment *big.Int,
) (EscrowService, error) {
	if repo == nil {
		return nil, ErrMissingRepoManager
	}
	if custodian == nil {
		return nil, ErrMissingCustodian
	}
	if owner == (common.Address{}) {
		return nil, ErrInvalidOwner
	}
	if ledger == (common.Address{}) || ledger == owner {
		return nil, ErrInvalidLedgerAddress
	}
	if minimumPayment == nil || minimumPayment.Sign() <= 0 {
		minimumPayment = new(big.Int).Set(DefaultMinimumPayment)
	}

	return &escrowService{
		repo:           repo,
		custodian:      custodian,
		publisher:      publisher,
		metrics:        metrics,
		owner:          owner,
		ledger:         ledger,
		minimumPayment: new(big.Int).Set(minimumPayment),
		lock:           &sync.Mutex{},
	}, nil
}

func (s *escrowService) CreateOrder(
	ctx context.Context,
	caller common.Address, amount *big.Int, asset common.Address,
) (uint64, error) {
	var orderID uint64

	err := s.execute(ctx, "createOrder", func(ctx context.Context) ([]*domain.Event, error) {
		if amount == nil || amount.Cmp(s.minimumPayment) < 0 {
			return nil, domain.ErrInvalidAmount
		}
		if !domain.IsNativeAsset(asset) {
			ok, err := s.repo.AssetRepository().IsSupportedAsset(ctx, asset)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, domain.ErrUnsupportedAsset
			}
		}

		id, err := s.repo.OrderRepository().GetNextOrderID(ctx)
		if err != nil {
			return nil, err
		}
		order := domain.NewOrder(id, caller, amount, asset)
		if err := s.repo.OrderRepository().AddOrder(ctx, order); err != nil {
			return nil, err
		}

		orderID = id
		return []*domain.Event{domain.NewPaymentPendingEvent(order)}, nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

func (s *escrowService) ProcessNativePayment(
	ctx context.Context, caller common.Address, orderID uint64, value *big.Int,
) error {
	if value == nil {
		value = big.NewInt(0)
	}

	return s.execute(ctx, "processNativePayment", func(ctx context.Context) ([]*domain.Event, error) {
		order, err := s.getPendingOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.IsTokenPayment {
			return nil, domain.ErrInvalidPaymentMethod
		}
		if value.Cmp(order.Amount) < 0 {
			return nil, domain.ErrInsufficientPayment
		}

		if err := s.custodian.TransferNative(ctx, caller, s.ledger, value); err != nil {
			return nil, fmt.Errorf("failed to receive payment: %w", err)
		}
		// Any excess over the order amount is retained by the ledger.
		if err := s.repo.BalanceRepository().UpdateBalance(
			ctx, domain.NativeAsset, domain.Credit(value),
		); err != nil {
			return nil, err
		}
		if err := s.updateOrder(ctx, orderID, (*domain.Order).Complete); err != nil {
			return nil, err
		}

		return []*domain.Event{
			domain.NewPaymentReceivedEvent(order, value),
			domain.NewPaymentCompletedEvent(order),
		}, nil
	})
}

func (s *escrowService) ProcessTokenPayment(
	ctx context.Context, caller common.Address, orderID uint64,
) error {
	return s.execute(ctx, "processTokenPayment", func(ctx context.Context) ([]*domain.Event, error) {
		order, err := s.getPendingOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !order.IsTokenPayment {
			return nil, domain.ErrInvalidPaymentMethod
		}

		token := order.PaymentToken
		allowance, err := s.custodian.Allowance(ctx, token, order.Buyer, s.ledger)
		if err != nil {
			return nil, err
		}
		if allowance.Cmp(order.Amount) < 0 {
			return nil, domain.ErrInsufficientAllowance
		}

		if err := s.custodian.TransferTokenFrom(
			ctx, token, s.ledger, order.Buyer, s.ledger, order.Amount,
		); err != nil {
			return nil, fmt.Errorf("failed to receive payment: %w", err)
		}
		if err := s.repo.BalanceRepository().UpdateBalance(
			ctx, token, domain.Credit(order.Amount),
		); err != nil {
			return nil, err
		}
		if err := s.updateOrder(ctx, orderID, (*domain.Order).Complete); err != nil {
			return nil, err
		}

		return []*domain.Event{
			domain.NewPaymentReceivedEvent(order, order.Amount),
			domain.NewPaymentCompletedEvent(order),
		}, nil
	})
}

func (s *escrowService) CancelOrders(
	ctx context.Context, caller common.Address, orderIDs []uint64,
) error {
	if len(orderIDs) <= 0 {
		return nil
	}

	return s.execute(ctx, "cancelOrders", func(ctx context.Context) ([]*domain.Event, error) {
		// Validate the whole batch before touching any order.
		orders := make([]*domain.Order, 0, len(orderIDs))
		seen := make(map[uint64]struct{}, len(orderIDs))
		for _, id := range orderIDs {
			order, err := s.repo.OrderRepository().GetOrder(ctx, id)
			if err != nil {
				return nil, err
			}
			if order == nil {
				return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
			}
			if order.Buyer != caller {
				return nil, fmt.Errorf("%w: %d", domain.ErrNotOrderOwner, id)
			}
			if _, ok := seen[id]; ok || !order.IsPending() {
				return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotPending, id)
			}
			seen[id] = struct{}{}
			orders = append(orders, order)
		}

		events := make([]*domain.Event, 0, len(orders))
		for _, order := range orders {
			if err := s.updateOrder(ctx, order.ID, (*domain.Order).Cancel); err != nil {
				return nil, err
			}
			events = append(
				events, domain.NewPaymentFailedEvent(order, domain.CancelReason),
			)
		}
		return events, nil
	})
}

func (s *escrowService) InitiateRefund(
	ctx context.Context, caller common.Address, orderID uint64,
) error {
	return s.execute(ctx, "initiateRefund", func(ctx context.Context) ([]*domain.Event, error) {
		if err := s.onlyOwner(caller); err != nil {
			return nil, err
		}
		order, err := s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.updateOrder(ctx, orderID, (*domain.Order).StartRefund); err != nil {
			return nil, err
		}
		return []*domain.Event{domain.NewRefundPendingEvent(order)}, nil
	})
}

func (s *escrowService) ProcessRefund(
	ctx context.Context, caller common.Address, orderID uint64,
) error {
	return s.execute(ctx, "processRefund", func(ctx context.Context) ([]*domain.Event, error) {
		if err := s.onlyOwner(caller); err != nil {
			return nil, err
		}
		order, err := s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !order.IsRefundPending() {
			return nil, domain.ErrOrderNotRefundPending
		}

		asset := order.Asset()
		if err := s.repo.BalanceRepository().UpdateBalance(
			ctx, asset, domain.Debit(order.Amount),
		); err != nil {
			return nil, err
		}
		if err := s.send(ctx, asset, order.Buyer, order.Amount); err != nil {
			return nil, fmt.Errorf("failed to refund buyer: %w", err)
		}
		if err := s.updateOrder(ctx, orderID, (*domain.Order).Refund); err != nil {
			return nil, err
		}

		return []*domain.Event{
			domain.NewRefundSuccessfulEvent(order),
			domain.NewPaymentRefundedEvent(order),
		}, nil
	})
}

func (s *escrowService) AddSupportedToken(
	ctx context.Context, caller common.Address, asset common.Address,
) error {
	return s.execute(ctx, "addSupportedToken", func(ctx context.Context) ([]*domain.Event, error) {
		if err := s.onlyOwner(caller); err != nil {
			return nil, err
		}
		// The native currency is always accepted and never registered.
		if domain.IsNativeAsset(asset) {
			return nil, nil
		}
		if _, err := s.repo.AssetRepository().AddAsset(ctx, asset); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func (s *escrowService) WithdrawNative(
	ctx context.Context, caller common.Address,
) (*big.Int, error) {
	return s.withdraw(ctx, "withdrawNative", caller, domain.NativeAsset)
}

func (s *escrowService) WithdrawToken(
	ctx context.Context, caller common.Address, asset common.Address,
) (*big.Int, error) {
	if domain.IsNativeAsset(asset) {
		if err := s.onlyOwner(caller); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidAsset
	}
	return s.withdraw(ctx, "withdrawToken", caller, asset)
}

func (s *escrowService) GetOrder(
	ctx context.Context, orderID uint64,
) (*domain.Order, error) {
	return s.repo.OrderRepository().GetOrder(ctx, orderID)
}

func (s *escrowService) GetBuyerOrders(
	ctx context.Context, buyer common.Address,
) ([]uint64, error) {
	return s.repo.OrderRepository().GetOrderIDsForBuyer(ctx, buyer)
}

func (s *escrowService) GetBalance(
	ctx context.Context, asset common.Address,
) (*big.Int, error) {
	return s.repo.BalanceRepository().GetBalance(ctx, asset)
}

func (s *escrowService) GetAllBalances(
	ctx context.Context,
) (map[common.Address]*big.Int, error) {
	return s.repo.BalanceRepository().GetAllBalances(ctx)
}

func (s *escrowService) GetNextOrderID(ctx context.Context) (uint64, error) {
	return s.repo.OrderRepository().GetNextOrderID(ctx)
}

func (s *escrowService) ListSupportedTokens(
	ctx context.Context,
) ([]common.Address, error) {
	return s.repo.AssetRepository().GetAllAssets(ctx)
}

func (s *escrowService) IsSupportedToken(
	ctx context.Context, asset common.Address,
) (bool, error) {
	if domain.IsNativeAsset(asset) {
		return true, nil
	}
	return s.repo.AssetRepository().IsSupportedAsset(ctx, asset)
}

func (s *escrowService) GetEvents(
	ctx context.Context, fromSeq uint64, limit int,
) ([]*domain.Event, error) {
	return s.repo.EventRepository().GetEvents(ctx, fromSeq, limit)
}

func (s *escrowService) GetInfo() LedgerInfo {
	return LedgerInfo{
		Owner:          s.owner,
		Ledger:         s.ledger,
		MinimumPayment: new(big.Int).Set(s.minimumPayment),
	}
}

// execute runs fn as a single atomic step. Calls are serialized, the writes
// to the ledger's repositories and the custody transfers made by fn are
// committed together, along with the returned events. Events are published
// only after the commit, outside of the ledger lock.
func (s *escrowService) execute(
	ctx context.Context, operation string,
	fn func(ctx context.Context) ([]*domain.Event, error),
) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(operation, start, err)
	}()

	events, err := s.commit(ctx, operation, fn)
	if err != nil {
		return err
	}

	if s.publisher != nil && len(events) > 0 {
		s.publisher.PublishEvents(events)
	}
	return nil
}

// commit holds the ledger lock for the unit of work only, notifications are
// sent once it is released.
func (s *escrowService) commit(
	ctx context.Context, operation string,
	fn func(ctx context.Context) ([]*domain.Event, error),
) ([]*domain.Event, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var events []*domain.Event
	unit := uow.NewUnitOfWork(s.repo, s.custodian)
	if err := unit.Run(ctx, func(ctx context.Context) error {
		evs, err := fn(ctx)
		if err != nil {
			return err
		}
		if len(evs) > 0 {
			if err := s.repo.EventRepository().AddEvents(ctx, evs...); err != nil {
				return err
			}
		}
		events = evs
		return nil
	}); err != nil {
		log.WithError(err).Debugf("ledger: %s failed", operation)
		return nil, err
	}

	for _, e := range events {
		log.Debugf(
			"ledger: %s emitted %s for order %d (seq %d)",
			operation, e.Type, e.OrderID, e.Seq,
		)
	}
	s.refreshBalanceMetrics(ctx, events)
	return events, nil
}

func (s *escrowService) withdraw(
	ctx context.Context, operation string,
	caller common.Address, asset common.Address,
) (*big.Int, error) {
	var amount *big.Int

	err := s.execute(ctx, operation, func(ctx context.Context) ([]*domain.Event, error) {
		if err := s.onlyOwner(caller); err != nil {
			return nil, err
		}
		balance, err := s.repo.BalanceRepository().GetBalance(ctx, asset)
		if err != nil {
			return nil, err
		}
		if balance.Sign() <= 0 {
			return nil, domain.ErrZeroBalance
		}

		if err := s.repo.BalanceRepository().UpdateBalance(
			ctx, asset, domain.Debit(balance),
		); err != nil {
			return nil, err
		}
		if err := s.send(ctx, asset, s.owner, balance); err != nil {
			return nil, fmt.Errorf("failed to withdraw: %w", err)
		}

		amount = balance
		return []*domain.Event{
			domain.NewPaymentSentEvent(s.owner, balance, asset),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// send moves funds out of the ledger's custody.
func (s *escrowService) send(
	ctx context.Context, asset, to common.Address, amount *big.Int,
) error {
	if domain.IsNativeAsset(asset) {
		return s.custodian.TransferNative(ctx, s.ledger, to, amount)
	}
	return s.custodian.TransferToken(ctx, asset, s.ledger, to, amount)
}

func (s *escrowService) onlyOwner(caller common.Address) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	return nil
}

func (s *escrowService) getOrder(
	ctx context.Context, orderID uint64,
) (*domain.Order, error) {
	order, err := s.repo.OrderRepository().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *escrowService) getPendingOrder(
	ctx context.Context, orderID uint64,
) (*domain.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, domain.ErrOrderNotPending
	}
	return order, nil
}

func (s *escrowService) updateOrder(
	ctx context.Context, orderID uint64, transition func(*domain.Order) error,
) error {
	return s.repo.OrderRepository().UpdateOrder(
		ctx, orderID, func(o *domain.Order) (*domain.Order, error) {
			if err := transition(o); err != nil {
				return nil, err
			}
			return o, nil
		},
	)
}

func (s *escrowService) refreshBalanceMetrics(
	ctx context.Context, events []*domain.Event,
) {
	if s.metrics == nil {
		return
	}
	assets := make(map[common.Address]struct{})
	for _, e := range events {
		switch e.Type {
		case domain.EventPaymentReceived, domain.EventPaymentRefunded,
			domain.EventPaymentSent:
			assets[e.Asset] = struct{}{}
		}
	}
	for asset := range assets {
		balance, err := s.repo.BalanceRepository().GetBalance(ctx, asset)
		if err != nil {
			log.WithError(err).Warn("ledger: failed to read balance for metrics")
			continue
		}
		s.metrics.SetBalance(asset.Hex(), balance)
	}
}
