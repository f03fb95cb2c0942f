package inmemory

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type balanceRepositoryImpl struct {
	m *RepoManager
}

func (r *balanceRepositoryImpl) GetBalance(
	ctx context.Context, asset common.Address,
) (*big.Int, error) {
	balance := big.NewInt(0)
	err := r.m.read(ctx, func(s *state) error {
		if b, ok := s.balances[asset]; ok {
			balance.Set(b)
		}
		return nil
	})
	return balance, err
}

func (r *balanceRepositoryImpl) GetAllBalances(
	ctx context.Context,
) (map[common.Address]*big.Int, error) {
	balances := make(map[common.Address]*big.Int)
	err := r.m.read(ctx, func(s *state) error {
		for asset, b := range s.balances {
			balances[asset] = new(big.Int).Set(b)
		}
		return nil
	})
	return balances, err
}

func (r *balanceRepositoryImpl) UpdateBalance(
	ctx context.Context,
	asset common.Address, updateFn func(balance *big.Int) (*big.Int, error),
) error {
	return r.m.write(ctx, func(s *state) error {
		balance := big.NewInt(0)
		if b, ok := s.balances[asset]; ok {
			balance.Set(b)
		}

		updatedBalance, err := updateFn(balance)
		if err != nil {
			return err
		}

		s.balances[asset] = new(big.Int).Set(updatedBalance)
		return nil
	})
}
