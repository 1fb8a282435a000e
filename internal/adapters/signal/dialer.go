package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrUnauthorized is returned when the backend refuses the bearer token.
var ErrUnauthorized = errors.New("signaling: unauthorized")

// TokenFunc supplies the bearer token for each dial attempt.
type TokenFunc func() (string, error)

type Dialer struct {
	opts  Options
	token TokenFunc
	ws    *websocket.Dialer
}

func NewDialer(opts Options, token TokenFunc) *Dialer {
	return &Dialer{
		opts:  opts.withDefaults(),
		token: token,
		ws:    &websocket.Dialer{HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
	}
}

func (d *Dialer) Dial(ctx context.Context) (core.SignalConnection, error) {
	header := http.Header{}
	if d.token != nil {
		tok, err := d.token()
		if err != nil {
			return nil, fmt.Errorf("signaling token: %w", err)
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	ws, resp, err := d.ws.DialContext(ctx, d.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("dial %s: %w", d.opts.URL, err)
	}

	conn := newConn(ws, d.opts)
	conn.start()
	log.Info().Str("module", "adapters.signal").Str("url", d.opts.URL).Msg("connected")
	return conn, nil
}
