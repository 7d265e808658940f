package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/five82/logdeck/internal/logevent"
)

const (
	clientBuffer = 16
	writeTimeout = 10 * time.Second
)

var (
	errClientBusy = errors.New("viewer is not keeping up")
	errClientGone = errors.New("viewer disconnected")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one remote viewer. Deliver never blocks; a viewer whose
// buffer is full misses that batch.
type wsClient struct {
	name string
	conn *websocket.Conn
	send chan []logevent.LogEvent
	done chan struct{}
}

func (c *wsClient) Deliver(events []logevent.LogEvent) error {
	select {
	case <-c.done:
		return errClientGone
	default:
	}
	select {
	case c.send <- events:
		return nil
	default:
		return errClientBusy
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clientID++
	client := &wsClient{
		name: fmt.Sprintf("ws-%d", s.clientID),
		conn: conn,
		send: make(chan []logevent.LogEvent, clientBuffer),
		done: make(chan struct{}),
	}
	s.clients[client.name] = client
	s.mu.Unlock()

	d := s.deps.Dispatcher
	if err := d.AddDestination(client.name, client); err != nil {
		s.logger.Warn("register viewer failed", "viewer", client.name, "error", err)
		s.dropClient(client)
		return
	}
	s.logger.Info("viewer connected", "viewer", client.name, "remote", conn.RemoteAddr().String())
	defer func() {
		d.RemoveDestination(client.name)
		s.dropClient(client)
		s.logger.Info("viewer disconnected", "viewer", client.name)
	}()

	// Read pump, only to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(client)
				return
			}
		}
	}()

	d.Ready(client.name)
	for {
		select {
		case <-client.done:
			return
		case batch := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(batch); err != nil {
				s.logger.Warn("websocket write failed", "viewer", client.name, "error", err)
				return
			}
			d.Ready(client.name)
		}
	}
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[client.name]
	delete(s.clients, client.name)
	s.mu.Unlock()
	if ok {
		close(client.done)
		_ = client.conn.Close()
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		s.dropClient(c)
	}
}
