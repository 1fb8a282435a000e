package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/core"
)

// ErrAlreadyPending is returned when a correlation key already has a waiter.
var ErrAlreadyPending = errors.New("request already pending")

type Result struct {
	Data json.RawMessage
	Err  error
}

// Pending maps correlation tokens to the single request waiting on them.
// Replies are delivered at most once; late or unmatched replies are refused.
type Pending struct {
	mu      sync.Mutex
	waiters map[string]chan Result
	closed  error
}

func NewPending() *Pending {
	return &Pending{waiters: make(map[string]chan Result)}
}

// Register must be called before the request is sent so a fast reply is never lost.
func (p *Pending) Register(key string) (<-chan Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return nil, p.closed
	}
	if _, ok := p.waiters[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPending, key)
	}
	ch := make(chan Result, 1)
	p.waiters[key] = ch
	return ch, nil
}

// forget frees key only while ch is still its waiter; a newer request that
// registered the same key after ch was completed keeps its slot.
func (p *Pending) forget(key string, ch <-chan Result) {
	p.mu.Lock()
	if cur, ok := p.waiters[key]; ok && cur == ch {
		delete(p.waiters, key)
	}
	p.mu.Unlock()
}

func (p *Pending) complete(key string, r Result) error {
	p.mu.Lock()
	ch, ok := p.waiters[key]
	if ok {
		delete(p.waiters, key)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownCorrelation, key)
	}
	ch <- r
	return nil
}

// Resolve completes the waiter for key. A second reply for the same key, or a
// reply nobody asked for, yields core.ErrUnknownCorrelation.
func (p *Pending) Resolve(key string, data json.RawMessage) error {
	return p.complete(key, Result{Data: data})
}

func (p *Pending) Reject(key string, err error) error {
	return p.complete(key, Result{Err: err})
}

// Await blocks until the reply, ctx cancellation or timeout. On timeout the
// attempt is abandoned and the key freed; it is not retried.
func (p *Pending) Await(ctx context.Context, key string, ch <-chan Result, timeout time.Duration) (json.RawMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.Data, r.Err
	case <-timer.C:
		p.forget(key, ch)
		return nil, fmt.Errorf("%w: %s after %s", core.ErrNegotiationTimeout, key, timeout)
	case <-ctx.Done():
		p.forget(key, ch)
		return nil, ctx.Err()
	}
}

// Request registers key, runs send and waits for the correlated reply.
func (p *Pending) Request(ctx context.Context, key string, timeout time.Duration, send func() error) (json.RawMessage, error) {
	ch, err := p.Register(key)
	if err != nil {
		return nil, err
	}
	if err := send(); err != nil {
		p.forget(key, ch)
		return nil, err
	}
	return p.Await(ctx, key, ch, timeout)
}

// Close fails every outstanding request with err and refuses new ones.
func (p *Pending) Close(err error) {
	if err == nil {
		err = core.ErrClosed
	}
	p.mu.Lock()
	if p.closed != nil {
		p.mu.Unlock()
		return
	}
	p.closed = err
	waiters := p.waiters
	p.waiters = make(map[string]chan Result)
	p.mu.Unlock()
	for _, ch := range waiters {
		ch <- Result{Err: err}
	}
}
