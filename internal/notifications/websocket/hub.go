package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrHubClosed     = errors.New("settlement feed closed")
	ErrBroadcastFull = errors.New("broadcast channel full")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Connection is one live feed subscriber
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string
}

// Hub fans settlement events out to websocket subscribers. Only the run
// goroutine touches the connection set or closes a Send channel.
type Hub struct {
	connections map[*Connection]bool
	broadcast   chan []byte
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	done        chan struct{}
	count       chan chan int
	once        sync.Once

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub starts a hub. An empty allowedOrigins accepts any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	h := &Hub{
		connections: make(map[*Connection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		count:       make(chan chan int),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins["*"] || origins[origin]
			},
		},
	}

	go h.run()

	return h
}

// ServeFeed handles GET /ws/settlements
func (h *Hub) ServeFeed(c *gin.Context) {
	if _, err := h.HandleConnection(c.Writer, c.Request); err != nil {
		h.logger.Warn("Failed to open settlement feed", zap.Error(err))
	}
}

// HandleConnection upgrades the request and subscribes it to the feed
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		ConnectedAt: time.Now(),
		UserAgent:   r.Header.Get("User-Agent"),
		IPAddress:   r.RemoteAddr,
	}

	select {
	case h.register <- connection:
	case <-h.done:
		conn.Close()
		return nil, ErrHubClosed
	}

	go h.readPump(connection)
	go h.writePump(connection)

	return connection, nil
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(conn *Connection) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Feed connection closed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.connections[conn] = true
			h.logger.Debug("Feed connection registered", zap.String("connection_id", conn.ID))

		case conn := <-h.unregister:
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
				h.logger.Debug("Feed connection unregistered", zap.String("connection_id", conn.ID))
			}

		case message := <-h.broadcast:
			for conn := range h.connections {
				select {
				case conn.Send <- message:
				default:
					// Slow subscriber, drop it rather than stall the feed
					close(conn.Send)
					delete(h.connections, conn)
				}
			}

		case reply := <-h.count:
			reply <- len(h.connections)

		case <-h.stop:
			for conn := range h.connections {
				close(conn.Send)
				delete(h.connections, conn)
			}
			return
		}
	}
}

// Broadcast queues payload for every subscriber without blocking
func (h *Hub) Broadcast(payload []byte) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- payload:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// ConnectionCount returns the number of live subscribers
func (h *Hub) ConnectionCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close disconnects every subscriber and stops the hub
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.stop)
	})
	<-h.done
}
