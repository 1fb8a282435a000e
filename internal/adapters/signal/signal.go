// Package signal is the websocket client side of the signaling channel.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var ErrBackpressure = errors.New("backpressure")

const (
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	defaultWriteWait  = 5 * time.Second
	defaultSendBuffer = 32
	incomingBuffer    = 64
)

type Options struct {
	URL        string
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = defaultReadLimit
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = defaultPingPeriod
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// pongWait is how long the peer may stay silent before the link is declared dead.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WsSignalConn is one authenticated signaling connection. It never reconnects.
type WsSignalConn struct {
	conn *websocket.Conn
	opts Options
	send chan core.Frame

	incoming chan core.Message
	done     chan struct{}
	pumps    conc.WaitGroup

	mu     sync.RWMutex
	closed bool
	err    error
}

func newConn(ws *websocket.Conn, opts Options) *WsSignalConn {
	return &WsSignalConn{
		conn:     ws,
		opts:     opts,
		send:     make(chan core.Frame, opts.SendBuffer),
		incoming: make(chan core.Message, incomingBuffer),
		done:     make(chan struct{}),
	}
}

func (c *WsSignalConn) start() {
	c.pumps.Go(c.writePump)
	c.pumps.Go(c.readPump)
}

// Emit encodes the event envelope and queues it without blocking.
func (c *WsSignalConn) Emit(event string, payload any) error {
	b, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return c.TrySend(b)
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Incoming() <-chan core.Message { return c.incoming }

func (c *WsSignalConn) Done() <-chan struct{} { return c.done }

func (c *WsSignalConn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// shutdown marks the connection closed once. cause is nil for a local close.
func (c *WsSignalConn) shutdown(cause error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	c.err = cause
	close(c.send)
	close(c.done)
	c.mu.Unlock()
	return true
}

// Close sends a normal closure frame and waits for both pumps to exit.
func (c *WsSignalConn) Close() {
	if c.shutdown(nil) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
		_ = c.conn.Close()
		log.Info().Str("module", "adapters.signal").Msg("connection closed")
	}
	c.pumps.Wait()
}
