package application_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/escrowd/internal/core/domain"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/storageutil/uow"
)

// **** Custodian ****

type mockCustodian struct {
	mock.Mock
}

type mockTx struct{}

func (mockTx) Commit() error   { return nil }
func (mockTx) Rollback() error { return nil }

func (m *mockCustodian) Begin() (uow.Tx, error) {
	return mockTx{}, nil
}

func (m *mockCustodian) ContextKey() interface{} {
	return m
}

func (m *mockCustodian) NativeBalance(
	ctx context.Context, account common.Address,
) (*big.Int, error) {
	args := m.Called(ctx, account)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockCustodian) TokenBalance(
	ctx context.Context, token, account common.Address,
) (*big.Int, error) {
	args := m.Called(ctx, token, account)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockCustodian) Allowance(
	ctx context.Context, token, owner, spender common.Address,
) (*big.Int, error) {
	args := m.Called(ctx, token, owner, spender)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockCustodian) TransferNative(
	ctx context.Context, from, to common.Address, amount *big.Int,
) error {
	args := m.Called(ctx, from, to, amount)
	return args.Error(0)
}

func (m *mockCustodian) TransferToken(
	ctx context.Context, token, from, to common.Address, amount *big.Int,
) error {
	args := m.Called(ctx, token, from, to, amount)
	return args.Error(0)
}

func (m *mockCustodian) TransferTokenFrom(
	ctx context.Context,
	token, spender, from, to common.Address, amount *big.Int,
) error {
	args := m.Called(ctx, token, spender, from, to, amount)
	return args.Error(0)
}

var _ ports.Custodian = (*mockCustodian)(nil)

// **** Publisher ****

type eventRecorder struct {
	lock   sync.Mutex
	events []*domain.Event
}

func (r *eventRecorder) PublishEvents(events []*domain.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, events...)
}

func (r *eventRecorder) types() []domain.EventType {
	r.lock.Lock()
	defer r.lock.Unlock()

	types := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *eventRecorder) last() *domain.Event {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.events) <= 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *eventRecorder) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = nil
}

// **** PubSub ****

type mockPubSub struct {
	mock.Mock
}

func (m *mockPubSub) Subscribe(topic, endpoint, secret string) (string, error) {
	args := m.Called(topic, endpoint, secret)
	return args.String(0), args.Error(1)
}

func (m *mockPubSub) Unsubscribe(topic, id string) error {
	args := m.Called(topic, id)
	return args.Error(0)
}

func (m *mockPubSub) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	args := m.Called(topic)

	var res []ports.Subscription
	if a := args.Get(0); a != nil {
		res = a.([]ports.Subscription)
	}
	return res
}

func (m *mockPubSub) Publish(topic string, message string) error {
	args := m.Called(topic, message)
	return args.Error(0)
}

func (m *mockPubSub) Close() {
	m.Called()
}

type mockSubscription struct {
	id, topic, endpoint string
	secured             bool
}

func (s mockSubscription) Id() string       { return s.id }
func (s mockSubscription) Topic() string    { return s.topic }
func (s mockSubscription) NotifyAt() string { return s.endpoint }
func (s mockSubscription) IsSecured() bool  { return s.secured }

type feedRecorder struct {
	lock     sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *feedRecorder) Broadcast(message []byte) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.messages = append(f.messages, message)
}

func (f *feedRecorder) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
}
