package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// DevicePath is the endpoint the device bridge connects to.
const DevicePath = "/appmessage"

// Frame types exchanged over the websocket.
const (
	FrameAppMessage = "appmessage" // structured record, either direction
	FrameAck        = "ack"        // device accepted a phone record
	FrameNack       = "nack"       // device rejected a phone record
)

const (
	defaultAckTimeout = 10 * time.Second
	writeWait         = 5 * time.Second
)

// Frame is a single websocket message.
type Frame struct {
	Type          string                `json:"type"`
	TransactionID uint32                `json:"transaction_id,omitempty"`
	Payload       appmessage.Dictionary `json:"payload,omitempty"`
}

// WebSocketChannel implements Channel over a websocket served to the device bridge.
// Only one device session is active at a time; a new connection replaces the old one.
type WebSocketChannel struct {
	*dispatcher

	log        *slog.Logger
	addr       string
	ackTimeout time.Duration
	upgrader   websocket.Upgrader
	nextTxID   atomic.Uint32

	mu      sync.Mutex
	baseCtx context.Context //nolint:containedctx // handlers outlive the HTTP request
	session *session
	pending map[uint32]chan string
	closed  bool
	devices sync.WaitGroup
}

type session struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketChannel creates a channel listening on addr.
// A non-positive ackTimeout falls back to ten seconds.
func NewWebSocketChannel(addr string, ackTimeout time.Duration, log *slog.Logger) *WebSocketChannel {
	if ackTimeout <= 0 {
		ackTimeout = defaultAckTimeout
	}

	return &WebSocketChannel{
		dispatcher: newDispatcher(log),
		log:        log,
		addr:       addr,
		ackTimeout: ackTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The bridge is a native client; browsers always send an Origin.
				return r.Header.Get("Origin") == ""
			},
		},
		baseCtx: context.Background(),
		pending: make(map[uint32]chan string),
	}
}

// Handler returns the HTTP routes served by the channel.
func (c *WebSocketChannel) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(DevicePath, c.handleDevice).Methods(http.MethodGet)

	return router
}

// Run serves the websocket endpoint until ctx is cancelled.
func (c *WebSocketChannel) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("device channel server failed: %w", err)
	}

	return c.Serve(ctx, listener)
}

// Serve accepts device connections on listener until ctx is cancelled.
// It returns only after every device connection has been closed, so no
// handler runs once Serve has returned.
func (c *WebSocketChannel) Serve(ctx context.Context, listener net.Listener) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	readTimeout := 5
	server := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: time.Duration(readTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.InfoContext(ctx, "Starting device channel", "addr", listener.Addr().String(), "path", DevicePath)
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("device channel server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownTimeout := 5
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(shutdownTimeout)*time.Second)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)

	// Hijacked connections are neither closed nor awaited by Shutdown.
	c.mu.Lock()
	c.closed = true
	if c.session != nil {
		c.session.close()
	}
	c.mu.Unlock()
	c.devices.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down device channel: %w", shutdownErr)
	}
	c.log.InfoContext(shutdownCtx, "Device channel stopped")

	return nil
}

// SendAppMessage writes msg to the connected device and waits for its ack.
func (c *WebSocketChannel) SendAppMessage(ctx context.Context, msg appmessage.Dictionary) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil {
		return ErrNoDevice
	}

	txID := c.nextTxID.Add(1)
	result := make(chan string, 1)

	c.mu.Lock()
	c.pending[txID] = result
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, txID)
		c.mu.Unlock()
	}()

	if err := sess.write(Frame{Type: FrameAppMessage, TransactionID: txID, Payload: msg}); err != nil {
		return fmt.Errorf("failed to write app message: %w", err)
	}

	c.log.DebugContext(ctx, "App message written, awaiting ack", "session", sess.id, "transaction_id", txID)

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case reply := <-result:
		if reply == FrameNack {
			return fmt.Errorf("%w: transaction %d", ErrNacked, txID)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: transaction %d after %s", ErrAckTimeout, txID, c.ackTimeout)
	case <-sess.done:
		return fmt.Errorf("%w: transaction %d", ErrDisconnected, txID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleDevice upgrades the connection, announces readiness and reads frames until the device leaves.
func (c *WebSocketChannel) handleDevice(w http.ResponseWriter, r *http.Request) {
	// Registered before the upgrade, while Shutdown still tracks the request.
	c.devices.Add(1)
	defer c.devices.Done()

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.ErrorContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	sess := &session{id: uuid.NewString(), conn: conn, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.InfoContext(r.Context(), "Device channel stopped, rejecting connection", "remote", r.RemoteAddr)
		sess.close()
		return
	}
	previous := c.session
	c.session = sess
	ctx := c.baseCtx
	c.mu.Unlock()

	if previous != nil {
		c.log.InfoContext(ctx, "Replacing device session", "previous", previous.id, "session", sess.id)
		previous.close()
	}

	c.log.InfoContext(ctx, "Device connected", "session", sess.id, "remote", r.RemoteAddr)

	defer func() {
		c.mu.Lock()
		if c.session == sess {
			c.session = nil
		}
		c.mu.Unlock()
		sess.close()
		c.log.InfoContext(ctx, "Device disconnected", "session", sess.id)
	}()

	c.dispatch(ctx, appmessage.Event{Type: appmessage.EventReady, Session: sess.id})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.log.WarnContext(ctx, "Device read failed", "session", sess.id, "error", err)
			}
			return
		}

		c.handleFrame(ctx, sess, data)
	}
}

func (c *WebSocketChannel) handleFrame(ctx context.Context, sess *session, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.WarnContext(ctx, "Dropping malformed frame", "session", sess.id, "error", err)
		return
	}

	switch frame.Type {
	case FrameAppMessage:
		c.dispatch(ctx, appmessage.Event{
			Type:    appmessage.EventAppMessage,
			Payload: frame.Payload,
			Session: sess.id,
		})
	case FrameAck, FrameNack:
		c.resolve(ctx, frame)
	default:
		c.log.WarnContext(ctx, "Unknown frame type", "session", sess.id, "type", frame.Type)
	}
}

func (c *WebSocketChannel) resolve(ctx context.Context, frame Frame) {
	c.mu.Lock()
	result, ok := c.pending[frame.TransactionID]
	c.mu.Unlock()

	if !ok {
		c.log.DebugContext(ctx, "Reply for unknown transaction", "type", frame.Type, "transaction_id", frame.TransactionID)
		return
	}

	select {
	case result <- frame.Type:
	default:
	}
}

func (s *session) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err = s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
