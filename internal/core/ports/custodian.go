package ports

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover a
	// transfer from its external balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAllowanceExceeded is returned when a spender pulls more tokens than
	// it has been approved for.
	ErrAllowanceExceeded = errors.New("insufficient allowance")
)

// Custodian moves funds between external accounts. Native currency and
// tokens follow account-based semantics, tokens also support allowances.
// Transfers made within a unit of work are committed or rolled back together
// with the ledger's writes.
type Custodian interface {
	uow.Transactional
	uow.ContextProvider

	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(
		ctx context.Context, token, account common.Address,
	) (*big.Int, error)
	Allowance(
		ctx context.Context, token, owner, spender common.Address,
	) (*big.Int, error)
	TransferNative(
		ctx context.Context, from, to common.Address, amount *big.Int,
	) error
	TransferToken(
		ctx context.Context, token, from, to common.Address, amount *big.Int,
	) error
	TransferTokenFrom(
		ctx context.Context,
		token, spender, from, to common.Address, amount *big.Int,
	) error
}

// Faucet creates funds and allowances out of thin air. It is meant for
// development setups only.
type Faucet interface {
	Mint(ctx context.Context, account common.Address, amount *big.Int) error
	MintToken(
		ctx context.Context, token, account common.Address, amount *big.Int,
	) error
	Approve(
		ctx context.Context, token, owner, spender common.Address, amount *big.Int,
	) error
}
