package application

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var (
	// DefaultMinimumPayment is 0.01 native units.
	DefaultMinimumPayment = big.NewInt(1e16)
	// DefaultLedgerAddress is the custody account of the ledger when none is
	// configured.
	DefaultLedgerAddress = common.HexToAddress(
		"0x00000000000000000000000000000000e5c70001",
	)

	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
	}
)
