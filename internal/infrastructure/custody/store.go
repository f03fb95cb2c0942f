package custody

import (
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const custodyDbDir = "custody"

const (
	kindNative    = "native"
	kindToken     = "token"
	kindAllowance = "allowance"
)

// entry is the persisted form of a single native balance, token balance or
// token allowance.
type entry struct {
	Kind    string
	Asset   string
	Account string
	Spender string
	Amount  string
}

func (e entry) key() string {
	return fmt.Sprintf("%s/%s/%s/%s", e.Kind, e.Asset, e.Account, e.Spender)
}

type store struct {
	db *badgerhold.Store
}

func newStore(baseDbDir string, logger badger.Logger) (*store, error) {
	opts := badger.DefaultOptions(filepath.Join(baseDbDir, custodyDbDir))
	opts.Logger = logger

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}
	return &store{db}, nil
}

func (s *store) load() (*state, error) {
	var entries []entry
	if err := s.db.Find(&entries, nil); err != nil {
		return nil, err
	}

	st := newState()
	for _, e := range entries {
		amount, ok := new(big.Int).SetString(e.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q for %s", e.Amount, e.key())
		}
		asset := common.HexToAddress(e.Asset)
		account := common.HexToAddress(e.Account)

		switch e.Kind {
		case kindNative:
			st.native[account] = amount
		case kindToken:
			st.tokenBalances(asset)[account] = amount
		case kindAllowance:
			st.setAllowance(asset, account, common.HexToAddress(e.Spender), amount)
		default:
			return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
		}
	}
	return st, nil
}

func (s *store) save(entries []entry) error {
	if len(entries) <= 0 {
		return nil
	}
	return s.db.Badger().Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := s.db.TxUpsert(txn, e.key(), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store) close() error {
	return s.db.Close()
}
