package inmemory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
)

// state is the whole content of the in-memory store. Transactions operate on
// a private copy that replaces the committed one on commit.
type state struct {
	orders      map[uint64]*domain.Order
	buyerOrders map[common.Address][]uint64
	nextOrderID uint64
	balances    map[common.Address]*big.Int
	assets      []common.Address
	events      []*domain.Event
}

func newState() *state {
	return &state{
		orders:      make(map[uint64]*domain.Order),
		buyerOrders: make(map[common.Address][]uint64),
		nextOrderID: 1,
		balances:    make(map[common.Address]*big.Int),
		assets:      make([]common.Address, 0),
		events:      make([]*domain.Event, 0),
	}
}

func (s *state) clone() *state {
	c := &state{
		orders:      make(map[uint64]*domain.Order, len(s.orders)),
		buyerOrders: make(map[common.Address][]uint64, len(s.buyerOrders)),
		nextOrderID: s.nextOrderID,
		balances:    make(map[common.Address]*big.Int, len(s.balances)),
		assets:      append([]common.Address{}, s.assets...),
		// Stored events are never modified, sharing them is fine.
		events: append([]*domain.Event{}, s.events...),
	}
	for id, order := range s.orders {
		c.orders[id] = copyOrder(order)
	}
	for buyer, ids := range s.buyerOrders {
		c.buyerOrders[buyer] = append([]uint64{}, ids...)
	}
	for asset, balance := range s.balances {
		c.balances[asset] = new(big.Int).Set(balance)
	}
	return c
}

type tx struct {
	m     *RepoManager
	state *state
}

func (t *tx) Commit() error {
	t.m.lock.Lock()
	defer t.m.lock.Unlock()

	t.m.state = t.state
	return nil
}

func (t *tx) Rollback() error {
	return nil
}

type RepoManager struct {
	lock  *sync.RWMutex
	state *state

	orderRepository   domain.OrderRepository
	balanceRepository domain.BalanceRepository
	assetRepository   domain.AssetRepository
	eventRepository   domain.EventRepository
}

func NewRepoManager() ports.RepoManager {
	m := &RepoManager{
		lock:  &sync.RWMutex{},
		state: newState(),
	}
	m.orderRepository = &orderRepositoryImpl{m}
	m.balanceRepository = &balanceRepositoryImpl{m}
	m.assetRepository = &assetRepositoryImpl{m}
	m.eventRepository = &eventRepositoryImpl{m}
	return m
}

func (m *RepoManager) OrderRepository() domain.OrderRepository {
	return m.orderRepository
}

func (m *RepoManager) BalanceRepository() domain.BalanceRepository {
	return m.balanceRepository
}

func (m *RepoManager) AssetRepository() domain.AssetRepository {
	return m.assetRepository
}

func (m *RepoManager) EventRepository() domain.EventRepository {
	return m.eventRepository
}

func (m *RepoManager) Begin() (uow.Tx, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return &tx{m, m.state.clone()}, nil
}

func (m *RepoManager) ContextKey() interface{} {
	return m
}

func (m *RepoManager) Close() {}

// read runs fn against the state of the transaction carried by ctx, if any,
// or against the committed state otherwise.
func (m *RepoManager) read(ctx context.Context, fn func(s *state) error) error {
	if t, ok := ctx.Value(m.ContextKey()).(*tx); ok {
		return fn(t.state)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	return fn(m.state)
}

// write runs fn against the state of the transaction carried by ctx, if any.
// Otherwise fn works on a copy of the committed state that replaces it only
// if no error occurs.
func (m *RepoManager) write(ctx context.Context, fn func(s *state) error) error {
	if t, ok := ctx.Value(m.ContextKey()).(*tx); ok {
		return fn(t.state)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	s := m.state.clone()
	if err := fn(s); err != nil {
		return err
	}
	m.state = s
	return nil
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Amount = new(big.Int).Set(o.Amount)
	return &c
}
