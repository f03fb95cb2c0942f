package eventfeed_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/internal/infrastructure/eventfeed"
)

func TestEventFeed(t *testing.T) {
	feed := eventfeed.NewService()
	server := httptest.NewServer(feed)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conns := make([]*websocket.Conn, 0, 2)
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	t.Cleanup(func() {
		for _, c := range conns {
			c.Close()
		}
	})

	require.Eventually(t, func() bool {
		return feed.NumClients() == 2
	}, 5*time.Second, 10*time.Millisecond)

	messages := []string{`{"seq":1}`, `{"seq":2}`}
	for _, m := range messages {
		feed.Broadcast([]byte(m))
	}

	for _, conn := range conns {
		//nolint
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for _, expected := range messages {
			_, message, err := conn.ReadMessage()
			require.NoError(t, err)
			require.Equal(t, expected, string(message))
		}
	}

	feed.Close()
	require.Zero(t, feed.NumClients())

	// New connections are refused once the feed is closed.
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	//nolint
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}
