package custody

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
)

// Service is a custodian that simulates an account-based chain with a native
// currency and any number of fungible tokens. It also serves as faucet for
// development setups. Balances live in memory and, if the service is opened
// with a datadir, are persisted to disk at every commit.
type Service struct {
	lock  *sync.RWMutex
	state *state
	store *store
}

// NewService returns a volatile custodian.
func NewService() *Service {
	return &Service{
		lock:  &sync.RWMutex{},
		state: newState(),
	}
}

// NewPersistentService returns a custodian whose balances are stored under
// baseDbDir. An empty baseDbDir makes the service volatile.
func NewPersistentService(
	baseDbDir string, logger badger.Logger,
) (*Service, error) {
	if len(baseDbDir) <= 0 {
		return NewService(), nil
	}

	db, err := newStore(baseDbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open custody store: %w", err)
	}
	st, err := db.load()
	if err != nil {
		db.close()
		return nil, fmt.Errorf("failed to load custody state: %w", err)
	}
	return &Service{
		lock:  &sync.RWMutex{},
		state: st,
		store: db,
	}, nil
}

var (
	_ ports.Custodian = (*Service)(nil)
	_ ports.Faucet    = (*Service)(nil)
)

// Close releases the underlying store, if any.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.close()
}

type tx struct {
	s     *Service
	base  *state
	state *state
}

// Commit applies the changes made within the transaction on top of the
// current state, which may have been updated by other writers since Begin.
func (t *tx) Commit() error {
	t.s.lock.Lock()
	defer t.s.lock.Unlock()

	return t.s.apply(t.base, t.state)
}

func (t *tx) Rollback() error {
	return nil
}

func (s *Service) Begin() (uow.Tx, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return &tx{s, s.state.clone(), s.state.clone()}, nil
}

func (s *Service) ContextKey() interface{} {
	return s
}

func (s *Service) NativeBalance(
	ctx context.Context, account common.Address,
) (*big.Int, error) {
	var amount *big.Int
	s.read(ctx, func(st *state) {
		amount = st.native.get(account)
	})
	return amount, nil
}

func (s *Service) TokenBalance(
	ctx context.Context, token, account common.Address,
) (*big.Int, error) {
	var amount *big.Int
	s.read(ctx, func(st *state) {
		amount = st.tokens[token].get(account)
	})
	return amount, nil
}

func (s *Service) Allowance(
	ctx context.Context, token, owner, spender common.Address,
) (*big.Int, error) {
	var amount *big.Int
	s.read(ctx, func(st *state) {
		amount = st.allowance(token, owner, spender)
	})
	return amount, nil
}

func (s *Service) TransferNative(
	ctx context.Context, from, to common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		if err := transfer(st.native, from, to, amount); err != nil {
			return fmt.Errorf("native transfer from %s: %w", from.Hex(), err)
		}
		log.Debugf(
			"custody: transferred %s native from %s to %s",
			amount, from.Hex(), to.Hex(),
		)
		return nil
	})
}

func (s *Service) TransferToken(
	ctx context.Context, token, from, to common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		if err := transfer(st.tokenBalances(token), from, to, amount); err != nil {
			return fmt.Errorf(
				"token %s transfer from %s: %w", token.Hex(), from.Hex(), err,
			)
		}
		log.Debugf(
			"custody: transferred %s of token %s from %s to %s",
			amount, token.Hex(), from.Hex(), to.Hex(),
		)
		return nil
	})
}

func (s *Service) TransferTokenFrom(
	ctx context.Context,
	token, spender, from, to common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		allowance := st.allowance(token, from, spender)
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf(
				"token %s spender %s: %w", token.Hex(), spender.Hex(),
				ports.ErrAllowanceExceeded,
			)
		}
		if err := transfer(st.tokenBalances(token), from, to, amount); err != nil {
			return fmt.Errorf(
				"token %s transfer from %s: %w", token.Hex(), from.Hex(), err,
			)
		}
		st.setAllowance(token, from, spender, allowance.Sub(allowance, amount))
		log.Debugf(
			"custody: %s pulled %s of token %s from %s to %s",
			spender.Hex(), amount, token.Hex(), from.Hex(), to.Hex(),
		)
		return nil
	})
}

func (s *Service) Mint(
	ctx context.Context, account common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		mint(st.native, account, amount)
		return nil
	})
}

func (s *Service) MintToken(
	ctx context.Context, token, account common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		mint(st.tokenBalances(token), account, amount)
		return nil
	})
}

func (s *Service) Approve(
	ctx context.Context, token, owner, spender common.Address, amount *big.Int,
) error {
	return s.write(ctx, func(st *state) error {
		st.setAllowance(token, owner, spender, amount)
		return nil
	})
}

func (s *Service) read(ctx context.Context, fn func(st *state)) {
	if t, ok := ctx.Value(s.ContextKey()).(*tx); ok {
		fn(t.state)
		return
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	fn(s.state)
}

func (s *Service) write(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(s.ContextKey()).(*tx); ok {
		return fn(t.state)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	st := s.state.clone()
	if err := fn(st); err != nil {
		return err
	}
	return s.apply(s.state, st)
}

// apply merges the changes between base and next into the current state and
// persists them. Must be called with the write lock held.
func (s *Service) apply(base, next *state) error {
	current := s.state.clone()
	entries, err := current.merge(base, next)
	if err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.save(entries); err != nil {
			return fmt.Errorf("failed to persist custody state: %w", err)
		}
	}
	s.state = current
	return nil
}

func transfer(b balances, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s", amount)
	}
	fromBalance := b.get(from)
	if fromBalance.Cmp(amount) < 0 {
		return ports.ErrInsufficientFunds
	}
	b[from] = fromBalance.Sub(fromBalance, amount)
	b[to] = new(big.Int).Add(b.get(to), amount)
	return nil
}

func mint(b balances, account common.Address, amount *big.Int) {
	b[account] = new(big.Int).Add(b.get(account), amount)
}
