package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/meetclient/internal/app"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrInvalidSlot = errors.New("invalid slot")

type ProducerEngine interface {
	Produce(ctx context.Context, track core.LocalTrack, opts core.ProduceOptions) (core.Producer, error)
	CloseProducer(p core.Producer, slot domain.Slot) error
}

// ProduceBudget supplies per-slot encoding limits for new producers.
type ProduceBudget interface {
	ProduceOptions(slot domain.Slot) core.ProduceOptions
}

// LocalProducer is a published local track bound to its slot.
type LocalProducer struct {
	Slot     domain.Slot
	Track    core.LocalTrack
	Producer core.Producer
}

func (p *LocalProducer) ID() domain.ProducerID { return p.Producer.ID() }

// ProducerRegistry keeps at most one live producer per slot. It owns the
// capture track of every producer it holds and stops it on release.
type ProducerRegistry struct {
	engine  ProducerEngine
	budget  ProduceBudget
	metrics *metrics.Metrics
	store   *app.Store[domain.Slot, *LocalProducer]
	locks   map[domain.Slot]*sync.Mutex

	mu     sync.Mutex
	closed bool
}

func NewProducerRegistry(engine ProducerEngine, budget ProduceBudget, m *metrics.Metrics) *ProducerRegistry {
	locks := make(map[domain.Slot]*sync.Mutex, len(domain.Slots))
	for _, s := range domain.Slots {
		locks[s] = &sync.Mutex{}
	}
	return &ProducerRegistry{
		engine:  engine,
		budget:  budget,
		metrics: m,
		store:   app.NewStore[domain.Slot, *LocalProducer]("app.media.producers"),
		locks:   locks,
	}
}

func (r *ProducerRegistry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Publish closes whatever occupies slot and then publishes track there.
// The registry takes ownership of track even when publishing fails.
func (r *ProducerRegistry) Publish(ctx context.Context, slot domain.Slot, track core.LocalTrack) (*LocalProducer, error) {
	lock, ok := r.locks[slot]
	if !ok {
		track.Stop()
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	lock.Lock()
	defer lock.Unlock()

	if r.isClosed() {
		track.Stop()
		return nil, core.ErrNotJoined
	}
	if old, ok := r.store.Remove(slot); ok {
		r.release(old, old.Track != track)
	}

	opts := r.budget.ProduceOptions(slot)
	p, err := r.engine.Produce(ctx, track, opts)
	if err != nil {
		track.Stop()
		return nil, fmt.Errorf("publish %s: %w", slot, err)
	}
	lp := &LocalProducer{Slot: slot, Track: track, Producer: p}
	r.store.Replace(slot, lp)
	r.metrics.ProducerPublished(string(slot))
	log.Info().
		Str("module", "app.media").
		Str("slot", string(slot)).
		Str("producer_id", string(p.ID())).
		Msg("producer published")
	return lp, nil
}

// Unpublish frees slot. Unpublishing an empty slot is a no-op.
func (r *ProducerRegistry) Unpublish(slot domain.Slot) error {
	lock, ok := r.locks[slot]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	lock.Lock()
	defer lock.Unlock()
	old, ok := r.store.Remove(slot)
	if !ok {
		return nil
	}
	return r.release(old, true)
}

func (r *ProducerRegistry) release(lp *LocalProducer, stopTrack bool) error {
	err := r.engine.CloseProducer(lp.Producer, lp.Slot)
	if stopTrack {
		lp.Track.Stop()
	}
	r.metrics.ProducerClosed(string(lp.Slot))
	l := log.Info()
	if err != nil {
		l = log.Warn().Err(err)
	}
	l.Str("module", "app.media").
		Str("slot", string(lp.Slot)).
		Str("producer_id", string(lp.ID())).
		Msg("producer closed")
	return err
}

func (r *ProducerRegistry) Get(slot domain.Slot) (*LocalProducer, bool) {
	return r.store.Get(slot)
}

// Published lists occupied slots with their producer ids.
func (r *ProducerRegistry) Published() map[domain.Slot]domain.ProducerID {
	out := make(map[domain.Slot]domain.ProducerID)
	for s, lp := range r.store.Snapshot() {
		out[s] = lp.ID()
	}
	return out
}


// CloseAll releases every producer and refuses further publishing. A
// publish in flight finishes first and is then released too.
func (r *ProducerRegistry) CloseAll() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, s := range domain.Slots {
		lock := r.locks[s]
		lock.Lock()
		if lp, ok := r.store.Remove(s); ok {
			if err := r.release(lp, true); err != nil {
				errs = append(errs, err)
			}
		}
		lock.Unlock()
	}
	return errors.Join(errs...)
}
