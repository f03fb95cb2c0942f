package ports

import (
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
)

// RepoManager holds all the repositories of the ledger. Writes made through
// them are atomic when performed within a unit of work.
type RepoManager interface {
	uow.Transactional
	uow.ContextProvider

	OrderRepository() domain.OrderRepository
	BalanceRepository() domain.BalanceRepository
	AssetRepository() domain.AssetRepository
	EventRepository() domain.EventRepository

	Close()
}
