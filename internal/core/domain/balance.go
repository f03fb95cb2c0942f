package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceRepository is the abstraction for any kind of database intended to
// persist the ledger's accounted holdings per asset.
type BalanceRepository interface {
	// GetBalance returns the accounted balance for the asset, zero if unknown.
	GetBalance(ctx context.Context, asset common.Address) (*big.Int, error)
	// GetAllBalances returns all accounted balances indexed by asset.
	GetAllBalances(ctx context.Context) (map[common.Address]*big.Int, error)
	// UpdateBalance allows to change the balance of an asset in a
	// transactional way.
	UpdateBalance(
		ctx context.Context,
		asset common.Address, updateFn func(balance *big.Int) (*big.Int, error),
	) error
}

// Credit returns an update function that adds amount to a balance.
func Credit(amount *big.Int) func(*big.Int) (*big.Int, error) {
	return func(balance *big.Int) (*big.Int, error) {
		return new(big.Int).Add(balance, amount), nil
	}
}

// Debit returns an update function that subtracts amount from a balance.
// Balances never go negative.
func Debit(amount *big.Int) func(*big.Int) (*big.Int, error) {
	return func(balance *big.Int) (*big.Int, error) {
		if balance.Cmp(amount) < 0 {
			return nil, ErrInsufficientBalance
		}
		return new(big.Int).Sub(balance, amount), nil
	}
}
