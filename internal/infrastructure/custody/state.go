package custody

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

type balances map[common.Address]*big.Int

func (b balances) get(account common.Address) *big.Int {
	if amount, ok := b[account]; ok {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

func (b balances) clone() balances {
	c := make(balances, len(b))
	for account, amount := range b {
		c[account] = new(big.Int).Set(amount)
	}
	return c
}

// state holds native balances, token balances and token allowances. The
// latter are indexed by token, then owner, then spender.
type state struct {
	native     balances
	tokens     map[common.Address]balances
	allowances map[common.Address]map[common.Address]balances
}

func newState() *state {
	return &state{
		native:     make(balances),
		tokens:     make(map[common.Address]balances),
		allowances: make(map[common.Address]map[common.Address]balances),
	}
}

func (s *state) clone() *state {
	c := &state{
		native:     s.native.clone(),
		tokens:     make(map[common.Address]balances, len(s.tokens)),
		allowances: make(map[common.Address]map[common.Address]balances, len(s.allowances)),
	}
	for token, b := range s.tokens {
		c.tokens[token] = b.clone()
	}
	for token, byOwner := range s.allowances {
		c.allowances[token] = make(map[common.Address]balances, len(byOwner))
		for owner, b := range byOwner {
			c.allowances[token][owner] = b.clone()
		}
	}
	return c
}

func (s *state) tokenBalances(token common.Address) balances {
	if _, ok := s.tokens[token]; !ok {
		s.tokens[token] = make(balances)
	}
	return s.tokens[token]
}

func (s *state) allowance(token, owner, spender common.Address) *big.Int {
	if byOwner, ok := s.allowances[token]; ok {
		if b, ok := byOwner[owner]; ok {
			return b.get(spender)
		}
	}
	return big.NewInt(0)
}

func (s *state) setAllowance(token, owner, spender common.Address, amount *big.Int) {
	if _, ok := s.allowances[token]; !ok {
		s.allowances[token] = make(map[common.Address]balances)
	}
	if _, ok := s.allowances[token][owner]; !ok {
		s.allowances[token][owner] = make(balances)
	}
	s.allowances[token][owner][spender] = new(big.Int).Set(amount)
}

// merge applies to s the changes that turned base into next and returns the
// updated entries. Balance changes are applied as deltas so that writes made
// to s after base was taken are preserved.
func (s *state) merge(base, next *state) ([]entry, error) {
	entries := make([]entry, 0)

	for account, amount := range next.native {
		updated, ok := applyDelta(s.native, account, base.native.get(account), amount)
		if !ok {
			continue
		}
		if updated.Sign() < 0 {
			return nil, fmt.Errorf(
				"native balance of %s: %w", account.Hex(), ports.ErrInsufficientFunds,
			)
		}
		entries = append(entries, entry{
			Kind: kindNative, Account: account.Hex(), Amount: updated.String(),
		})
	}

	for token, b := range next.tokens {
		baseBalances := base.tokens[token]
		for account, amount := range b {
			updated, ok := applyDelta(
				s.tokenBalances(token), account, baseBalances.get(account), amount,
			)
			if !ok {
				continue
			}
			if updated.Sign() < 0 {
				return nil, fmt.Errorf(
					"token %s balance of %s: %w",
					token.Hex(), account.Hex(), ports.ErrInsufficientFunds,
				)
			}
			entries = append(entries, entry{
				Kind: kindToken, Asset: token.Hex(), Account: account.Hex(),
				Amount: updated.String(),
			})
		}
	}

	for token, byOwner := range next.allowances {
		for owner, b := range byOwner {
			for spender, amount := range b {
				previous := base.allowance(token, owner, spender)
				if previous.Cmp(amount) == 0 {
					continue
				}
				delta := new(big.Int).Sub(amount, previous)
				updated := delta.Add(delta, s.allowance(token, owner, spender))
				// an approval made in the meantime may have lowered the allowance
				if updated.Sign() < 0 {
					updated.SetInt64(0)
				}
				s.setAllowance(token, owner, spender, updated)
				entries = append(entries, entry{
					Kind: kindAllowance, Asset: token.Hex(), Account: owner.Hex(),
					Spender: spender.Hex(), Amount: updated.String(),
				})
			}
		}
	}

	return entries, nil
}

func applyDelta(
	b balances, account common.Address, from, to *big.Int,
) (*big.Int, bool) {
	if from.Cmp(to) == 0 {
		return nil, false
	}
	updated := new(big.Int).Sub(to, from)
	updated.Add(updated, b.get(account))
	b[account] = updated
	return new(big.Int).Set(updated), true
}
