package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/logging"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://"+r.Host)
	},
}

type streamClient struct {
	send chan StreamMessage
	done chan struct{}
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.done) })
}

// streamHub fans messages out to websocket clients. Slow clients drop
// messages rather than stall the publisher.
type streamHub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func newStreamHub() *streamHub {
	return &streamHub{clients: make(map[*streamClient]struct{})}
}

func (h *streamHub) add() *streamClient {
	client := &streamClient{
		send: make(chan StreamMessage, clientBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *streamHub) remove(client *streamClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

func (h *streamHub) broadcast(msg StreamMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	for _, client := range clients {
		client.close()
	}
}

// Append implements logging.LogEventSink.
func (h *streamHub) Append(evt logging.LogEvent) {
	h.broadcast(StreamMessage{Type: "log", Log: &evt})
}

func (h *streamHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleEvents upgrades to a websocket. The first frame is a status event
// describing the current phase; later frames follow publication order.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	client := s.stream.add()
	defer s.stream.remove(client)

	go func() {
		defer client.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	status := s.director.Status()
	hello := director.Event{Type: director.EventStatus, Phase: status.Phase, Message: string(status.Display)}
	if err := writeFrame(conn, StreamMessage{Type: "event", Event: &hello}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case msg := <-client.send:
			if err := writeFrame(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
