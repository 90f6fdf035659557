package provider

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var logger = log.New(os.Stdout, "[provider] ", log.LstdFlags)

// StreamConfig holds transport-level tunables for one venue connection.
type StreamConfig struct {
	Endpoint         string
	HandshakeTimeout time.Duration
	// HeartbeatTimeout is the longest tolerated silence on the wire. Every
	// venue here sends either data or heartbeats well inside it; when it
	// elapses the read fails and the supervisor treats the connection as
	// dead.
	HeartbeatTimeout time.Duration
}

// StreamClient owns one websocket connection. It exposes inbound frames as
// a channel; the channel closes when the read loop exits, and Err reports
// whether that exit was a caller-initiated clean close (nil) or a transport
// failure.
type StreamClient struct {
	cfg StreamConfig

	conn    *websocket.Conn
	writeMu sync.Mutex

	frames chan []byte

	closeOnce sync.Once
	closing   chan struct{}

	errMu   sync.Mutex
	readErr error
}

func NewStreamClient(cfg StreamConfig) *StreamClient {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &StreamClient{
		cfg:     cfg,
		frames:  make(chan []byte, 256),
		closing: make(chan struct{}),
	}
}

// Dial opens the connection and starts the read loop.
func (c *StreamClient) Dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go c.readLoop()
	return nil
}

// Frames returns the inbound frame channel. It is closed when the
// connection dies or is closed; check Err afterwards.
func (c *StreamClient) Frames() <-chan []byte {
	return c.frames
}

// Err reports the terminal read error. Nil after a clean close. Only
// meaningful once Frames is closed.
func (c *StreamClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

func (c *StreamClient) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// CloseClean performs a caller-initiated shutdown: a normal close frame is
// sent so the peer (and our own read loop) can tell it apart from an
// abnormal termination, then the socket is torn down.
func (c *StreamClient) CloseClean() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		if c.conn == nil {
			return
		}
		deadline := time.Now().Add(time.Second)
		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *StreamClient) readLoop() {
	defer close(c.frames)

	for {
		if c.cfg.HeartbeatTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.cfg.HeartbeatTimeout))
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
				// Caller asked for the close; not a failure.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.errMu.Lock()
					c.readErr = err
					c.errMu.Unlock()
				}
			}
			return
		}

		select {
		case c.frames <- msg:
		case <-c.closing:
			return
		}
	}
}
