package inmemory

import (
	"context"

	"github.com/tdex-network/escrowd/internal/core/domain"
)

type eventRepositoryImpl struct {
	m *RepoManager
}

func (r *eventRepositoryImpl) AddEvents(
	ctx context.Context, events ...*domain.Event,
) error {
	return r.m.write(ctx, func(s *state) error {
		for _, e := range events {
			e.Seq = uint64(len(s.events)) + 1
			stored := *e
			s.events = append(s.events, &stored)
		}
		return nil
	})
}

func (r *eventRepositoryImpl) GetEvents(
	ctx context.Context, fromSeq uint64, limit int,
) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	err := r.m.read(ctx, func(s *state) error {
		for _, e := range s.events {
			if e.Seq < fromSeq {
				continue
			}
			if limit > 0 && len(events) >= limit {
				break
			}
			event := *e
			events = append(events, &event)
		}
		return nil
	})
	return events, err
}
