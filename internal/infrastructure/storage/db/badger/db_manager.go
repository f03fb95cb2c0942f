package dbbadger

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
	"github.com/timshannon/badgerhold/v4"
)

const (
	ledgerDbDir = "ledger"
	metadataKey = "metadata"
)

type repoManager struct {
	store *badgerhold.Store
	quit  chan struct{}

	orderRepository   domain.OrderRepository
	balanceRepository domain.BalanceRepository
	assetRepository   domain.AssetRepository
	eventRepository   domain.EventRepository
}

// NewRepoManager opens (or creates if not exists) the badger store on disk.
// It expects a base data dir and an optional logger. An empty data dir makes
// the store live in memory.
func NewRepoManager(
	baseDbDir string, logger badger.Logger,
) (ports.RepoManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, ledgerDbDir)
	}

	quit := make(chan struct{})
	store, err := createDb(dbDir, logger, quit)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	m := &repoManager{store: store, quit: quit}
	m.orderRepository = &orderRepositoryImpl{m}
	m.balanceRepository = &balanceRepositoryImpl{m}
	m.assetRepository = &assetRepositoryImpl{m}
	m.eventRepository = &eventRepositoryImpl{m}
	return m, nil
}

func (m *repoManager) OrderRepository() domain.OrderRepository {
	return m.orderRepository
}

func (m *repoManager) BalanceRepository() domain.BalanceRepository {
	return m.balanceRepository
}

func (m *repoManager) AssetRepository() domain.AssetRepository {
	return m.assetRepository
}

func (m *repoManager) EventRepository() domain.EventRepository {
	return m.eventRepository
}

func (m *repoManager) Begin() (uow.Tx, error) {
	return &tx{m.store.Badger().NewTransaction(true)}, nil
}

func (m *repoManager) ContextKey() interface{} {
	return m
}

func (m *repoManager) Close() {
	close(m.quit)
	m.store.Close()
}

// view runs fn within the badger transaction carried by ctx, if any, or
// within a new read-only one otherwise.
func (m *repoManager) view(
	ctx context.Context, fn func(txn *badger.Txn) error,
) error {
	if t, ok := ctx.Value(m.ContextKey()).(*tx); ok {
		return fn(t.txn)
	}
	return m.store.Badger().View(fn)
}

// update runs fn within the badger transaction carried by ctx, if any, or
// within a new read-write one that is committed if fn succeeds.
func (m *repoManager) update(
	ctx context.Context, fn func(txn *badger.Txn) error,
) error {
	if t, ok := ctx.Value(m.ContextKey()).(*tx); ok {
		return fn(t.txn)
	}
	return m.store.Badger().Update(fn)
}

func (m *repoManager) getMetadata(txn *badger.Txn) (*metadata, error) {
	var md metadata
	if err := m.store.TxGet(txn, metadataKey, &md); err != nil {
		if err == badgerhold.ErrNotFound {
			return &metadata{NextOrderID: 1, NextEventSeq: 1}, nil
		}
		return nil, err
	}
	return &md, nil
}

func (m *repoManager) updateMetadata(txn *badger.Txn, md *metadata) error {
	return m.store.TxUpsert(txn, metadataKey, md)
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Commit() error {
	return t.txn.Commit()
}

func (t *tx) Rollback() error {
	t.txn.Discard()
	return nil
}

func createDb(
	dbDir string, logger badger.Logger, quit chan struct{},
) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-quit:
					return
				case <-ticker.C:
					if err := db.Badger().RunValueLogGC(0.5); err != nil &&
						err != badger.ErrNoRewrite {
						log.Error(err)
					}
				}
			}
		}()
	}

	return db, nil
}
