package pubsub

import (
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const pubsubDbDir = "pubsub"

type store struct {
	db *badgerhold.Store
}

func newStore(baseDbDir string, logger badger.Logger) (*store, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, pubsubDbDir)
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.InMemory = len(dbDir) <= 0

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

func (s *store) add(hook *Webhook) error {
	if err := s.db.Insert(hook.ID, *hook); err != nil {
		if err == badgerhold.ErrKeyExists {
			return nil
		}
		return err
	}
	return nil
}

func (s *store) remove(id string) error {
	if err := s.db.Delete(id, Webhook{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}

func (s *store) listForTopic(topic string) (webhooks, error) {
	var query *badgerhold.Query
	if topic != ports.UnspecifiedTopic {
		query = badgerhold.Where("EventType").Eq(topic)
	}

	var list []Webhook
	if err := s.db.Find(&list, query); err != nil {
		return nil, err
	}
	hooks := webhooks(list)
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].CreatedAt != hooks[j].CreatedAt {
			return hooks[i].CreatedAt < hooks[j].CreatedAt
		}
		return hooks[i].ID < hooks[j].ID
	})
	return hooks, nil
}

func (s *store) close() error {
	return s.db.Close()
}
