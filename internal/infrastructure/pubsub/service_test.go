package pubsub_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/core/ports"
	"github.com/tdex-network/escrowd/internal/infrastructure/pubsub"
	"github.com/thanhpk/randstr"
)

var testMessage = `{"event":"PaymentCompleted","order_id":"1","account":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","amount":"50000000000000000","asset":"0x0000000000000000000000000000000000000000"}`

type request struct {
	path          string
	payload       string
	authorization string
}

type testServer struct {
	*httptest.Server
	lock     sync.Mutex
	requests []request
}

func newTestServer(t *testing.T) *testServer {
	srv := &testServer{}
	handleFn := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Bad method", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Content-Type") == "" {
			http.Error(w, "Missing Content-Type header", http.StatusUnsupportedMediaType)
			return
		}
		if r.URL.Path == "/failing" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		defer r.Body.Close()
		payload, _ := io.ReadAll(r.Body)

		srv.lock.Lock()
		srv.requests = append(srv.requests, request{
			r.URL.Path, string(payload), r.Header.Get("Authorization"),
		})
		srv.lock.Unlock()

		fmt.Fprintf(w, "Done")
	}
	srv.Server = httptest.NewServer(http.HandlerFunc(handleFn))
	t.Cleanup(srv.Close)
	return srv
}

func (s *testServer) received() []request {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]request{}, s.requests...)
}

func TestPubSubService(t *testing.T) {
	server := newTestServer(t)
	pubsubSvc := newTestService(t)

	completedEndpoint := fmt.Sprintf("%s/completed", server.URL)
	allEventsEndpoint := fmt.Sprintf("%s/allevents", server.URL)
	secret := randstr.Hex(32)

	testSubs := []struct {
		topic    string
		endpoint string
		secret   string
	}{
		{"PaymentCompleted", completedEndpoint, secret},
		{"PaymentCompleted", completedEndpoint, ""},
		{ports.AnyTopic, allEventsEndpoint, ""},
	}
	for _, sub := range testSubs {
		subID, err := pubsubSvc.Subscribe(sub.topic, sub.endpoint, sub.secret)
		require.NoError(t, err)
		require.NotEmpty(t, subID)
	}

	subs := pubsubSvc.ListSubscriptionsForTopic("PaymentCompleted")
	require.Len(t, subs, len(testSubs))
	securedCount := 0
	for _, sub := range subs {
		require.NotEmpty(t, sub.Id())
		if sub.IsSecured() {
			securedCount++
		}
	}
	require.Equal(t, 1, securedCount)

	subs = pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic)
	require.Len(t, subs, len(testSubs))

	// Should invoke all hooks.
	err := pubsubSvc.Publish("PaymentCompleted", testMessage)
	require.NoError(t, err)

	requests := server.received()
	require.Len(t, requests, len(testSubs))
	authorized := 0
	for _, r := range requests {
		require.Equal(t, testMessage, r.payload)
		if r.authorization == "" {
			continue
		}
		authorized++
		tokenString := strings.TrimPrefix(r.authorization, "Bearer ")
		token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		require.NoError(t, err)
		require.True(t, token.Valid)
	}
	require.Equal(t, 1, authorized)

	// Only the catch-all hook is invoked for other events.
	err = pubsubSvc.Publish("PaymentPending", testMessage)
	require.NoError(t, err)
	requests = server.received()
	require.Len(t, requests, len(testSubs)+1)
	require.Equal(t, "/allevents", requests[len(requests)-1].path)

	for _, s := range pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic) {
		err := pubsubSvc.Unsubscribe(s.Topic(), s.Id())
		require.NoError(t, err)
	}
	require.Empty(t, pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic))

	err = pubsubSvc.Unsubscribe("", "unknown")
	require.ErrorIs(t, err, pubsub.ErrSubscriptionNotFound)

	// Checks that it's all ok if there are no hooks to invoke.
	err = pubsubSvc.Publish("PaymentCompleted", testMessage)
	require.NoError(t, err)
}

func TestFailingPubSubService(t *testing.T) {
	server := newTestServer(t)
	pubsubSvc := newTestService(t)

	t.Run("invalid_subscription", func(t *testing.T) {
		_, err := pubsubSvc.Subscribe("", server.URL, "")
		require.ErrorIs(t, err, pubsub.ErrUnknownEventType)

		_, err = pubsubSvc.Subscribe("TradeSettled", server.URL, "")
		require.ErrorIs(t, err, pubsub.ErrUnknownEventType)

		_, err = pubsubSvc.Subscribe("PaymentSent", "not an url", "")
		require.ErrorIs(t, err, pubsub.ErrInvalidEndpoint)
	})

	t.Run("failing_endpoint", func(t *testing.T) {
		_, err := pubsubSvc.Subscribe(
			"PaymentSent", fmt.Sprintf("%s/failing", server.URL), "",
		)
		require.NoError(t, err)

		err = pubsubSvc.Publish("PaymentSent", testMessage)
		require.Error(t, err)
	})
}

func newTestService(t *testing.T) ports.PubSub {
	svc, err := pubsub.NewService("", log.New(), 0, 0)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}
