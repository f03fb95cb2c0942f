package dbbadger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

type assetRepositoryImpl struct {
	m *repoManager
}

func (r *assetRepositoryImpl) AddAsset(
	ctx context.Context, a common.Address,
) (bool, error) {
	added := false
	err := r.m.update(ctx, func(txn *badger.Txn) error {
		count, err := r.m.store.TxCount(txn, &asset{}, nil)
		if err != nil {
			return err
		}

		key := a.Hex()
		if err := r.m.store.TxInsert(
			txn, key, asset{Asset: key, Index: uint64(count)},
		); err != nil {
			if err == badgerhold.ErrKeyExists {
				return nil
			}
			return err
		}
		added = true
		return nil
	})
	return added, err
}

func (r *assetRepositoryImpl) IsSupportedAsset(
	ctx context.Context, a common.Address,
) (bool, error) {
	found := false
	err := r.m.view(ctx, func(txn *badger.Txn) error {
		if err := r.m.store.TxGet(txn, a.Hex(), &asset{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (r *assetRepositoryImpl) GetAllAssets(
	ctx context.Context,
) ([]common.Address, error) {
	var list []asset
	if err := r.m.view(ctx, func(txn *badger.Txn) error {
		return r.m.store.TxFind(txn, &list, nil)
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Index < list[j].Index
	})
	assets := make([]common.Address, 0, len(list))
	for _, a := range list {
		assets = append(assets, common.HexToAddress(a.Asset))
	}
	return assets, nil
}
