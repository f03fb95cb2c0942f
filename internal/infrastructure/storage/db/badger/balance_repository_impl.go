package dbbadger

import (
	"context"
	"math/big"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

type balanceRepositoryImpl struct {
	m *repoManager
}

func (r *balanceRepositoryImpl) GetBalance(
	ctx context.Context, asset common.Address,
) (*big.Int, error) {
	var amount *big.Int
	err := r.m.view(ctx, func(txn *badger.Txn) (err error) {
		amount, err = r.getBalance(txn, asset)
		return
	})
	return amount, err
}

func (r *balanceRepositoryImpl) GetAllBalances(
	ctx context.Context,
) (map[common.Address]*big.Int, error) {
	balances := make(map[common.Address]*big.Int)
	err := r.m.view(ctx, func(txn *badger.Txn) error {
		var list []balance
		if err := r.m.store.TxFind(txn, &list, nil); err != nil {
			return err
		}
		for _, b := range list {
			amount, err := parseAmount(b.Amount)
			if err != nil {
				return err
			}
			balances[common.HexToAddress(b.Asset)] = amount
		}
		return nil
	})
	return balances, err
}

func (r *balanceRepositoryImpl) UpdateBalance(
	ctx context.Context,
	asset common.Address, updateFn func(balance *big.Int) (*big.Int, error),
) error {
	return r.m.update(ctx, func(txn *badger.Txn) error {
		amount, err := r.getBalance(txn, asset)
		if err != nil {
			return err
		}

		updatedAmount, err := updateFn(amount)
		if err != nil {
			return err
		}

		key := asset.Hex()
		return r.m.store.TxUpsert(txn, key, balance{
			Asset:  key,
			Amount: updatedAmount.String(),
		})
	})
}

func (r *balanceRepositoryImpl) getBalance(
	txn *badger.Txn, asset common.Address,
) (*big.Int, error) {
	var b balance
	if err := r.m.store.TxGet(txn, asset.Hex(), &b); err != nil {
		if err == badgerhold.ErrNotFound {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(b.Amount)
}
