package application

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

const dispatchQueueSize = 256

// PubSubService notifies external subscribers of committed ledger events.
// Webhooks are invoked for the topic of the event type and for the catch-all
// topic, while the live feed, if any, receives every event.
type PubSubService interface {
	EventPublisher
	AddWebhook(ctx context.Context, hook Webhook) (string, error)
	RemoveWebhook(ctx context.Context, id string) error
	ListWebhooks(ctx context.Context, event string) ([]WebhookInfo, error)
	Close()
}

type Webhook struct {
	Event    string
	Endpoint string
	Secret   string
}

type WebhookInfo struct {
	Id        string
	Event     string
	Endpoint  string
	IsSecured bool
}

// EventMessage is the JSON representation of an event sent to webhooks and
// live feed clients.
type EventMessage struct {
	Event     string `json:"event"`
	Seq       uint64 `json:"seq"`
	OrderID   uint64 `json:"order_id,omitempty"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Asset     string `json:"asset"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewEventMessage(e *domain.Event) EventMessage {
	amount := "0"
	if e.Amount != nil {
		amount = e.Amount.String()
	}
	return EventMessage{
		Event:     string(e.Type),
		Seq:       e.Seq,
		OrderID:   e.OrderID,
		Account:   e.Account.Hex(),
		Amount:    amount,
		Asset:     e.Asset.Hex(),
		Reason:    e.Reason,
		Timestamp: e.Timestamp,
	}
}

type pubsubService struct {
	pubsub ports.PubSub
	feed   ports.EventFeed

	queue  chan []*domain.Event
	lock   *sync.RWMutex
	closed bool
	wg     *sync.WaitGroup
}

// NewPubSubService returns a service that dispatches events in the order they
// are published from a dedicated goroutine. Publishing never blocks: events
// that don't fit in the dispatch queue are dropped. Both pubsub and feed are
// optional.
func NewPubSubService(
	pubsub ports.PubSub, feed ports.EventFeed,
) PubSubService {
	svc := &pubsubService{
		pubsub: pubsub,
		feed:   feed,
		queue:  make(chan []*domain.Event, dispatchQueueSize),
		lock:   &sync.RWMutex{},
		wg:     &sync.WaitGroup{},
	}
	svc.wg.Add(1)
	go svc.dispatch()
	return svc
}

func (s *pubsubService) PublishEvents(events []*domain.Event) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed || len(events) <= 0 {
		return
	}
	select {
	case s.queue <- events:
	default:
		log.Warnf(
			"pubsub: dispatch queue full, dropping %d events from seq %d",
			len(events), events[0].Seq,
		)
	}
}

func (s *pubsubService) AddWebhook(
	_ context.Context, hook Webhook,
) (string, error) {
	if s.pubsub == nil {
		return "", ErrPubSubNotInitialized
	}
	if hook.Event != ports.AnyTopic && !domain.IsValidEventType(hook.Event) {
		return "", ErrInvalidWebhookEvent
	}
	return s.pubsub.Subscribe(hook.Event, hook.Endpoint, hook.Secret)
}

func (s *pubsubService) RemoveWebhook(_ context.Context, id string) error {
	if s.pubsub == nil {
		return ErrPubSubNotInitialized
	}
	return s.pubsub.Unsubscribe(ports.UnspecifiedTopic, id)
}

func (s *pubsubService) ListWebhooks(
	_ context.Context, event string,
) ([]WebhookInfo, error) {
	if s.pubsub == nil {
		return nil, ErrPubSubNotInitialized
	}
	event = strings.TrimSpace(event)
	if event != ports.UnspecifiedTopic && event != ports.AnyTopic &&
		!domain.IsValidEventType(event) {
		return nil, ErrInvalidWebhookEvent
	}

	subs := s.pubsub.ListSubscriptionsForTopic(event)
	hooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		hooks = append(hooks, WebhookInfo{
			Id:        sub.Id(),
			Event:     sub.Topic(),
			Endpoint:  sub.NotifyAt(),
			IsSecured: sub.IsSecured(),
		})
	}
	return hooks, nil
}

// Close stops accepting events and waits for the queued ones to be
// dispatched before closing the underlying services.
func (s *pubsubService) Close() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.lock.Unlock()

	s.wg.Wait()

	if s.pubsub != nil {
		s.pubsub.Close()
	}
	if s.feed != nil {
		s.feed.Close()
	}
}

func (s *pubsubService) dispatch() {
	defer s.wg.Done()

	for events := range s.queue {
		for _, e := range events {
			message, err := json.Marshal(NewEventMessage(e))
			if err != nil {
				log.WithError(err).Warnf("pubsub: failed to encode event %d", e.Seq)
				continue
			}

			if s.feed != nil {
				s.feed.Broadcast(message)
			}
			if s.pubsub != nil {
				if err := s.pubsub.Publish(string(e.Type), string(message)); err != nil {
					log.WithError(err).Warnf(
						"pubsub: failed to notify %s event %d", e.Type, e.Seq,
					)
				}
			}
		}
	}
}
