package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type eventRepositoryImpl struct {
	m *repoManager
}

func (r *eventRepositoryImpl) AddEvents(
	ctx context.Context, events ...*domain.Event,
) error {
	return r.m.update(ctx, func(txn *badger.Txn) error {
		md, err := r.m.getMetadata(txn)
		if err != nil {
			return err
		}

		for _, e := range events {
			e.Seq = md.NextEventSeq
			if err := r.m.store.TxInsert(txn, e.Seq, newEvent(e)); err != nil {
				return err
			}
			md.NextEventSeq++
		}

		return r.m.updateMetadata(txn, md)
	})
}

func (r *eventRepositoryImpl) GetEvents(
	ctx context.Context, fromSeq uint64, limit int,
) ([]*domain.Event, error) {
	query := badgerhold.Where("Seq").Ge(fromSeq).SortBy("Seq")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var list []event
	if err := r.m.view(ctx, func(txn *badger.Txn) error {
		return r.m.store.TxFind(txn, &list, query)
	}); err != nil {
		return nil, err
	}

	events := make([]*domain.Event, 0, len(list))
	for _, e := range list {
		ev, err := e.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
