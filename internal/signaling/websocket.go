package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"medcontrol/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var ErrClientClosed = errors.New("websocket client closed")

// Registrar is the side of the device registry the socket layer drives.
type Registrar interface {
	Register(userID int64, conn registry.Conn)
	Unregister(conn registry.Conn) bool
}

type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

type SignalingServer struct {
	devices      Registrar
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	clients      sync.Map
}

func NewSignalingServer(devices Registrar, opts Options, logger *zap.Logger) *SignalingServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &SignalingServer{
		devices:      devices,
		pingInterval: opts.PingInterval,
		writeTimeout: opts.WriteTimeout,
		logger:       logger,
	}
}

// Client is one open socket. It is the registry.Conn for whichever user it
// registered as, and stays usable until the socket closes.
type Client struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  bool
}

func (c *Client) ID() string {
	return c.id
}

// Send writes an event frame. The write deadline is the earlier of the
// context deadline and the configured write timeout.
func (c *Client) Send(ctx context.Context, event, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeJSON(ctx, ControlMessage{Type: event, Payload: payload})
}

func (c *Client) writeJSON(ctx context.Context, msg ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) writePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *Client) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
	c.conn.Close()
}

func (s *SignalingServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: s.writeTimeout,
	}
	s.clients.Store(client.id, client)
	s.logger.Info("Client connected",
		zap.String("conn_id", client.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	done := make(chan struct{})
	go s.keepAlive(client, done)

	s.readLoop(client)

	close(done)
	s.clients.Delete(client.id)
	removed := s.devices.Unregister(client)
	client.close()

	s.logger.Info("Client disconnected",
		zap.String("conn_id", client.id),
		zap.Bool("unregistered", removed),
	)
}

func (s *SignalingServer) readLoop(client *Client) {
	pongWait := s.pingInterval + s.writeTimeout

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("WebSocket read ended", zap.String("conn_id", client.id), zap.Error(err))
			}
			return
		}

		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType == websocket.TextMessage {
			s.handleControlMessage(client, message)
		}
	}
}

func (s *SignalingServer) keepAlive(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *SignalingServer) handleControlMessage(client *Client, message []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.sendError(client, "invalid message")
		return
	}

	switch msg.Type {
	case "register_device", "registrar_dispositivo":
		if msg.UserID <= 0 {
			s.sendError(client, "user_id is required")
			return
		}

		s.devices.Register(msg.UserID, client)
		s.logger.Info("Device registered",
			zap.Int64("user_id", msg.UserID),
			zap.String("conn_id", client.id),
		)

		s.sendMessage(client, ControlMessage{
			Type:    "registered",
			UserID:  msg.UserID,
			Success: true,
		})

	case "ping":
		s.sendMessage(client, ControlMessage{Type: "pong"})

	default:
		s.logger.Debug("Ignoring unknown message type",
			zap.String("conn_id", client.id),
			zap.String("type", msg.Type),
		)
	}
}

func (s *SignalingServer) sendMessage(client *Client, msg ControlMessage) {
	if err := client.writeJSON(context.Background(), msg); err != nil {
		s.logger.Debug("Reply not written", zap.String("conn_id", client.id), zap.Error(err))
	}
}

func (s *SignalingServer) sendError(client *Client, errMsg string) {
	s.sendMessage(client, ControlMessage{
		Type:  "error",
		Error: errMsg,
	})
}

// ActiveConnections counts open sockets, registered or not.
func (s *SignalingServer) ActiveConnections() int {
	n := 0
	s.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// CloseAll closes every open socket. Their handlers then unregister them.
func (s *SignalingServer) CloseAll() {
	s.clients.Range(func(_, value interface{}) bool {
		value.(*Client).close()
		return true
	})
}

type ControlMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id,omitempty"`
	Payload string `json:"payload,omitempty"`
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
