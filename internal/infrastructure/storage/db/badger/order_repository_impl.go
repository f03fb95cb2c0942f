package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type orderRepositoryImpl struct {
	m *repoManager
}

func (r *orderRepositoryImpl) GetNextOrderID(
	ctx context.Context,
) (uint64, error) {
	var id uint64
	err := r.m.view(ctx, func(txn *badger.Txn) error {
		md, err := r.m.getMetadata(txn)
		if err != nil {
			return err
		}
		id = md.NextOrderID
		return nil
	})
	return id, err
}

func (r *orderRepositoryImpl) AddOrder(
	ctx context.Context, o *domain.Order,
) error {
	return r.m.update(ctx, func(txn *badger.Txn) error {
		if err := r.m.store.TxInsert(txn, o.ID, newOrder(o)); err != nil {
			if err == badgerhold.ErrKeyExists {
				return ErrOrderAlreadyExists
			}
			return err
		}

		buyer := o.Buyer.Hex()
		index := buyerOrders{Buyer: buyer}
		if err := r.m.store.TxGet(txn, buyer, &index); err != nil &&
			err != badgerhold.ErrNotFound {
			return err
		}
		index.OrderIDs = append(index.OrderIDs, o.ID)
		if err := r.m.store.TxUpsert(txn, buyer, index); err != nil {
			return err
		}

		md, err := r.m.getMetadata(txn)
		if err != nil {
			return err
		}
		if o.ID >= md.NextOrderID {
			md.NextOrderID = o.ID + 1
		}
		return r.m.updateMetadata(txn, md)
	})
}

func (r *orderRepositoryImpl) GetOrder(
	ctx context.Context, orderID uint64,
) (*domain.Order, error) {
	var o *domain.Order
	err := r.m.view(ctx, func(txn *badger.Txn) (err error) {
		o, err = r.getOrder(txn, orderID)
		return
	})
	return o, err
}

func (r *orderRepositoryImpl) GetOrderIDsForBuyer(
	ctx context.Context, buyer common.Address,
) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := r.m.view(ctx, func(txn *badger.Txn) error {
		var index buyerOrders
		if err := r.m.store.TxGet(txn, buyer.Hex(), &index); err != nil {
			if err == badgerhold.ErrNotFound {
				return nil
			}
			return err
		}
		ids = append(ids, index.OrderIDs...)
		return nil
	})
	return ids, err
}

func (r *orderRepositoryImpl) UpdateOrder(
	ctx context.Context,
	orderID uint64, updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	return r.m.update(ctx, func(txn *badger.Txn) error {
		o, err := r.getOrder(txn, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}

		updatedOrder, err := updateFn(o)
		if err != nil {
			return err
		}

		return r.m.store.TxUpdate(txn, orderID, newOrder(updatedOrder))
	})
}

func (r *orderRepositoryImpl) getOrder(
	txn *badger.Txn, orderID uint64,
) (*domain.Order, error) {
	var o order
	if err := r.m.store.TxGet(txn, orderID, &o); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return o.toDomain()
}
