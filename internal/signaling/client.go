package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/warpcall/internal/dns"
	"github.com/gorilla/websocket"
)

// ErrTransportFailure reports that the signaling channel to the relay could
// not be opened or was lost.
var ErrTransportFailure = errors.New("signaling transport failure")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a participant's websocket connection to the relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	codec     Codec

	incoming chan *Message
	outgoing chan *Message

	// done is closed by Close; stopped is closed when either pump exits.
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	stopOnce  sync.Once

	mu  sync.Mutex
	err error
}

// NewClient creates a client for serverURL that speaks codec.
func NewClient(serverURL string, codec Codec) *Client {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Client{
		serverURL: serverURL,
		codec:     codec,
		incoming:  make(chan *Message, 32),
		outgoing:  make(chan *Message, 32),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Connect dials the relay, resolving its host through the fallback resolver.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("codec", c.codec.Name())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		NetDialContext:   dns.DialContext,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %w", ErrTransportFailure, u.Host, err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readPump delivers decoded frames on Incoming until the connection ends.
func (c *Client) readPump() {
	defer func() {
		c.stop()
		c.conn.Close()
		close(c.incoming)
	}()

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closing() {
				c.mu.Lock()
				c.err = fmt.Errorf("%w: %w", ErrTransportFailure, err)
				c.mu.Unlock()
			}
			return
		}

		msg, err := DecodeFrame(frameType, data)
		if err != nil {
			slog.Warn("dropping undecodable frame from relay", "error", err)
			continue
		}

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			data, err := c.codec.Encode(msg)
			if err != nil {
				slog.Error("encode message", "type", msg.Type, "error", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.stopped:
			return
		}
	}
}

// SendMessage queues msg for the relay. It fails with ErrTransportFailure
// once the connection is gone.
func (c *Client) SendMessage(msg *Message) error {
	select {
	case <-c.stopped:
		return fmt.Errorf("%w: connection closed", ErrTransportFailure)
	case <-c.done:
		return fmt.Errorf("%w: client closed", ErrTransportFailure)
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.stopped:
		return fmt.Errorf("%w: connection closed", ErrTransportFailure)
	case <-c.done:
		return fmt.Errorf("%w: client closed", ErrTransportFailure)
	}
}

// Incoming returns the channel of messages from the relay. It is closed when
// the connection ends; Err then reports why.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Err returns the transport error that ended the connection, or nil if it
// ended through Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close hangs up. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
