package eventfeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/core/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBufferSz = 64
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Service keeps track of live websocket connections and broadcasts every
// message to all of them. Slow clients that fill their buffer are dropped.
type Service struct {
	upgrader websocket.Upgrader
	lock     *sync.Mutex
	clients  map[*client]struct{}
	closed   bool
}

func NewService() *Service {
	return &Service{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		lock:    &sync.Mutex{},
		clients: make(map[*client]struct{}),
	}
}

var _ ports.EventFeed = (*Service)(nil)

// ServeHTTP upgrades the request to a websocket connection and registers it
// as a new client of the feed.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("event feed: failed to upgrade connection")
		return
	}

	c := &client{conn, make(chan []byte, clientBufferSz)}
	if !s.register(c) {
		conn.Close()
		return
	}
	log.Debugf("event feed: client %s connected", conn.RemoteAddr())

	go s.writeLoop(c)
	go s.readLoop(c)
}

func (s *Service) Broadcast(message []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for c := range s.clients {
		select {
		case c.send <- message:
		default:
			log.Warnf(
				"event feed: dropping slow client %s", c.conn.RemoteAddr(),
			)
			s.unregister(c)
		}
	}
}

func (s *Service) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	for c := range s.clients {
		s.unregister(c)
	}
}

// NumClients returns the number of live connections.
func (s *Service) NumClients() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.clients)
}

func (s *Service) register(c *client) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

// unregister must be called with the lock held.
func (s *Service) unregister(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Service) remove(c *client) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.unregister(c)
}

// readLoop only serves to process control frames and detect disconnections.
func (s *Service) readLoop(c *client) {
	defer s.remove(c)

	c.conn.SetReadLimit(512)
	//nolint
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			) {
				log.WithError(err).Warn("event feed: connection dropped")
			}
			return
		}
	}
}

func (s *Service) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithError(err).Warn("event feed: failed to write message")
				s.remove(c)
				return
			}
		case <-ticker.C:
			//nolint
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}
