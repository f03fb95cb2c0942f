package inmemory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/domain"
)

type orderRepositoryImpl struct {
	m *RepoManager
}

func (r *orderRepositoryImpl) GetNextOrderID(ctx context.Context) (uint64, error) {
	var id uint64
	err := r.m.read(ctx, func(s *state) error {
		id = s.nextOrderID
		return nil
	})
	return id, err
}

func (r *orderRepositoryImpl) AddOrder(
	ctx context.Context, order *domain.Order,
) error {
	return r.m.write(ctx, func(s *state) error {
		if _, ok := s.orders[order.ID]; ok {
			return ErrOrderAlreadyExists
		}

		s.orders[order.ID] = copyOrder(order)
		s.buyerOrders[order.Buyer] = append(s.buyerOrders[order.Buyer], order.ID)
		if order.ID >= s.nextOrderID {
			s.nextOrderID = order.ID + 1
		}
		return nil
	})
}

func (r *orderRepositoryImpl) GetOrder(
	ctx context.Context, orderID uint64,
) (*domain.Order, error) {
	var order *domain.Order
	err := r.m.read(ctx, func(s *state) error {
		if o, ok := s.orders[orderID]; ok {
			order = copyOrder(o)
		}
		return nil
	})
	return order, err
}

func (r *orderRepositoryImpl) GetOrderIDsForBuyer(
	ctx context.Context, buyer common.Address,
) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := r.m.read(ctx, func(s *state) error {
		ids = append(ids, s.buyerOrders[buyer]...)
		return nil
	})
	return ids, err
}

func (r *orderRepositoryImpl) UpdateOrder(
	ctx context.Context,
	orderID uint64, updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	return r.m.write(ctx, func(s *state) error {
		order, ok := s.orders[orderID]
		if !ok {
			return domain.ErrOrderNotFound
		}

		updatedOrder, err := updateFn(copyOrder(order))
		if err != nil {
			return err
		}

		s.orders[orderID] = copyOrder(updatedOrder)
		return nil
	})
}
