package mediatest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dkeye/meetclient/internal/core"
)

type Sent struct {
	Event   string
	Payload json.RawMessage
}

// Signal is an in-memory core.SignalConnection. Emitted events are recorded
// and offered to Responder; its replies go to Deliver when set, otherwise
// onto the Incoming channel.
type Signal struct {
	Responder func(event string, payload json.RawMessage) []core.Message
	Deliver   func(core.Message)
	EmitErr   error

	mu       sync.Mutex
	sent     []Sent
	incoming chan core.Message
	done     chan struct{}
	closed   bool
	err      error
}

func NewSignal() *Signal {
	return &Signal{
		incoming: make(chan core.Message, 1024),
		done:     make(chan struct{}),
	}
}

func (s *Signal) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	if s.EmitErr != nil {
		s.mu.Unlock()
		return s.EmitErr
	}
	s.sent = append(s.sent, Sent{Event: event, Payload: data})
	responder := s.Responder
	s.mu.Unlock()

	if responder == nil {
		return nil
	}
	for _, m := range responder(event, data) {
		s.Push(m)
	}
	return nil
}

// Push delivers a server message.
func (s *Signal) Push(m core.Message) {
	if s.Deliver != nil {
		s.Deliver(m)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.incoming <- m
}

// PushEvent encodes payload and pushes it as event.
func (s *Signal) PushEvent(event string, payload any) {
	s.Push(Msg(event, payload))
}

func (s *Signal) Incoming() <-chan core.Message { return s.incoming }
func (s *Signal) Done() <-chan struct{}         { return s.done }

func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Signal) Close() { s.shutdown(nil) }

// Fail drops the connection as if the server went away.
func (s *Signal) Fail(err error) { s.shutdown(err) }

func (s *Signal) shutdown(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.incoming)
	close(s.done)
}

func (s *Signal) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Signal) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// Count returns how many times event was emitted.
func (s *Signal) Count(event string) int {
	n := 0
	for _, m := range s.Sent() {
		if m.Event == event {
			n++
		}
	}
	return n
}

// Payloads returns the payloads emitted under event, in order.
func (s *Signal) Payloads(event string) []json.RawMessage {
	var out []json.RawMessage
	for _, m := range s.Sent() {
		if m.Event == event {
			out = append(out, m.Payload)
		}
	}
	return out
}

func Msg(event string, payload any) core.Message {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return core.Message{Type: event, Data: data}
}

// Dialer hands out a prepared Signal.
type Dialer struct {
	Signal *Signal
	Err    error
	Dials  int
}

func (d *Dialer) Dial(_ context.Context) (core.SignalConnection, error) {
	d.Dials++
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Signal, nil
}
