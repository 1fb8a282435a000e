package signal

import (
	"encoding/json"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *WsSignalConn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.fail(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				c.fail(err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("ping failed")
				c.fail(err)
				return
			}
		}
	}
}

func (c *WsSignalConn) readPump() {
	defer close(c.incoming)

	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.fail(err) {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("readPump read error")
			}
			return
		}
		var msg core.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			log.Error().Err(err).Str("module", "adapters.signal").Int("bytes", len(data)).Msg("bad json")
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// fail ends the connection on a transport error. It reports false when the
// connection was already closed, locally or by the other pump.
func (c *WsSignalConn) fail(err error) bool {
	if !c.shutdown(err) {
		return false
	}
	_ = c.conn.Close()
	return true
}
