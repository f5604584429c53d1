package relay

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendBuffer is the per-connection outbound queue depth. A connection whose
// queue fills is dropped by the hub.
const sendBuffer = 256

// Timings bounds a connection's keepalive and frame size.
type Timings struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// TimingsFrom extracts connection timings from the relay configuration.
func TimingsFrom(cfg *config.ServerConfig) Timings {
	return Timings{
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		PingPeriod:     cfg.PingPeriod,
		MaxMessageSize: cfg.MaxMessageSize,
	}
}

// Conn is one participant's signaling channel as seen by the relay.
type Conn struct {
	// ID is the relay-assigned participant id, announced in the welcome event.
	ID string

	hub     *Hub
	ws      *websocket.Conn
	codec   signaling.Codec
	timings Timings

	// Send is the outbound queue drained by WritePump. Only the hub
	// writes to or closes it.
	Send chan *signaling.Message
}

// NewConn wraps an upgraded websocket. The codec decides the frame type of
// outbound messages; inbound frames are decoded by their own frame type.
func NewConn(hub *Hub, ws *websocket.Conn, codec signaling.Codec, timings Timings) *Conn {
	return &Conn{
		ID:      uuid.NewString(),
		hub:     hub,
		ws:      ws,
		codec:   codec,
		timings: timings,
		Send:    make(chan *signaling.Message, sendBuffer),
	}
}

// ReadPump pumps frames from the websocket to the hub until the connection
// fails, then unregisters the connection. Run it in its own goroutine; it is
// the only reader of the websocket.
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.timings.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.timings.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.timings.PongWait))
		return nil
	})

	for {
		frameType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("read failed", "conn", c.ID, "error", err)
			}
			return
		}

		msg, err := signaling.DecodeFrame(frameType, data)
		if !c.hub.dispatch(c, msg, err) {
			return
		}
	}
}

// WritePump pumps queued messages to the websocket and keeps it alive with
// pings. It is the only writer of the websocket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.timings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.ws.SetWriteDeadline(time.Now().Add(c.timings.WriteWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.codec.Encode(msg)
			if err != nil {
				slog.Error("encode outbound message", "conn", c.ID, "type", msg.Type, "error", err)
				continue
			}
			if err := c.ws.WriteMessage(c.codec.FrameType(), data); err != nil {
				slog.Debug("write failed", "conn", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.timings.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
