package media

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/meetclient/internal/app"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ConsumerEngine interface {
	Consume(ctx context.Context, ref domain.RemoteProducerRef) (core.Consumer, error)
}

// Bundle is what is playable for one remote participant. Audio may carry
// both the microphone and the screen-audio track.
type Bundle struct {
	ParticipantID domain.UserID
	Tracks        map[domain.BundleSlot][]core.RemoteTrack
}

func (b Bundle) Has(slot domain.BundleSlot) bool { return len(b.Tracks[slot]) > 0 }

type consumerEntry struct {
	ref      domain.RemoteProducerRef
	gen      uint64
	consumer core.Consumer // nil while consumption is pending
}

func sameGen(gen uint64) func(*consumerEntry) bool {
	return func(e *consumerEntry) bool { return e.gen == gen }
}

type bundleState map[domain.BundleSlot]map[domain.ProducerID]core.RemoteTrack

// ConsumerRegistry consumes each remote producer at most once and keeps the
// resulting tracks grouped per participant.
type ConsumerRegistry struct {
	engine  ConsumerEngine
	metrics *metrics.Metrics
	logger  zerolog.Logger
	entries *app.Store[domain.ProducerID, *consumerEntry]

	mu       sync.Mutex
	bundles  map[domain.UserID]bundleState
	inflight map[domain.ProducerID]chan struct{}
	gen      uint64
	closed   bool
}

func NewConsumerRegistry(engine ConsumerEngine, m *metrics.Metrics) *ConsumerRegistry {
	return &ConsumerRegistry{
		engine:   engine,
		metrics:  m,
		logger:   log.With().Str("module", "app.media").Logger(),
		entries:  app.NewStore[domain.ProducerID, *consumerEntry]("app.media"),
		bundles:  make(map[domain.UserID]bundleState),
		inflight: make(map[domain.ProducerID]chan struct{}),
	}
}

// Announce consumes ref unless it is already consumed or pending. Duplicate
// announcements return (false, nil). A producer closed and announced again
// while its first consume is still outstanding is consumed once that request
// settles.
func (r *ConsumerRegistry) Announce(ctx context.Context, ref domain.RemoteProducerRef) (bool, error) {
	pid := ref.ProducerID
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, core.ErrNotJoined
	}
	e := &consumerEntry{ref: ref, gen: r.gen + 1}
	if !r.entries.Insert(pid, e) {
		r.mu.Unlock()
		r.metrics.DuplicateAnnouncement()
		r.logger.Debug().Str("producer_id", string(pid)).Msg("duplicate announcement ignored")
		return false, nil
	}
	r.gen = e.gen
	prev := r.inflight[pid]
	done := make(chan struct{})
	r.inflight[pid] = done
	r.mu.Unlock()
	defer r.settle(pid, done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			r.entries.RemoveIf(pid, sameGen(e.gen))
			return false, ctx.Err()
		}
		if cur, ok := r.entries.Get(pid); !ok || cur != e {
			return false, nil
		}
	}

	c, err := r.engine.Consume(ctx, ref)
	if err != nil {
		r.entries.RemoveIf(pid, sameGen(e.gen))
		return false, fmt.Errorf("consume %s of %s: %w", pid, ref.ParticipantID, err)
	}

	r.mu.Lock()
	cur, ok := r.entries.Get(pid)
	if r.closed || !ok || cur != e {
		r.mu.Unlock()
		// closed, superseded or participant gone while the request was outstanding
		if err := c.Close(); err != nil {
			r.logger.Warn().Err(err).Str("consumer_id", string(c.ID())).Msg("consumer close")
		}
		r.logger.Debug().Str("producer_id", string(pid)).Msg("stale consumer discarded")
		return false, nil
	}
	e.consumer = c
	slot := ref.BundleSlot()
	b, ok := r.bundles[ref.ParticipantID]
	if !ok {
		b = make(bundleState)
		r.bundles[ref.ParticipantID] = b
	}
	if b[slot] == nil {
		b[slot] = make(map[domain.ProducerID]core.RemoteTrack)
	}
	b[slot][pid] = c.Track()
	r.mu.Unlock()

	r.metrics.ConsumerCreated(string(ref.Kind))
	r.logger.Info().
		Str("participant_id", string(ref.ParticipantID)).
		Str("producer_id", string(pid)).
		Str("bundle_slot", string(slot)).
		Msg("consumer attached")
	return true, nil
}

// settle releases announcements of pid queued behind this request.
func (r *ConsumerRegistry) settle(pid domain.ProducerID, done chan struct{}) {
	r.mu.Lock()
	if r.inflight[pid] == done {
		delete(r.inflight, pid)
	}
	r.mu.Unlock()
	close(done)
}

// OnRemoteProducerClosed drops one producer and only its slot's track. The
// producer may be announced again afterwards.
func (r *ConsumerRegistry) OnRemoteProducerClosed(id domain.ProducerID) {
	r.mu.Lock()
	e, ok := r.entries.Remove(id)
	if !ok {
		r.mu.Unlock()
		return
	}
	if e.consumer != nil {
		r.detachLocked(e.ref)
	}
	r.mu.Unlock()

	if e.consumer != nil {
		r.closeConsumer(e.consumer)
	}
	r.logger.Info().Str("producer_id", string(id)).Msg("remote producer closed")
}

func (r *ConsumerRegistry) detachLocked(ref domain.RemoteProducerRef) {
	b, ok := r.bundles[ref.ParticipantID]
	if !ok {
		return
	}
	slot := ref.BundleSlot()
	delete(b[slot], ref.ProducerID)
	if len(b[slot]) == 0 {
		delete(b, slot)
	}
	if len(b) == 0 {
		delete(r.bundles, ref.ParticipantID)
	}
}

// OnParticipantLeft removes the participant's bundle and every consumer tied
// to it, pending ones included.
func (r *ConsumerRegistry) OnParticipantLeft(id domain.UserID) {
	var closing []core.Consumer
	r.mu.Lock()
	gone := r.entries.RemoveWhere(func(_ domain.ProducerID, e *consumerEntry) bool {
		return e.ref.ParticipantID == id
	})
	for _, e := range gone {
		if e.consumer != nil {
			closing = append(closing, e.consumer)
		}
	}
	delete(r.bundles, id)
	r.mu.Unlock()

	for _, c := range closing {
		r.closeConsumer(c)
	}
	r.logger.Info().Str("participant_id", string(id)).Int("consumers", len(closing)).Msg("participant bundle removed")
}

// CloseAll closes every consumer and refuses further announcements.
func (r *ConsumerRegistry) CloseAll() error {
	r.mu.Lock()
	r.closed = true
	entries := r.entries.Drain()
	r.bundles = make(map[domain.UserID]bundleState)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if e.consumer == nil {
			continue
		}
		if err := e.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
		r.metrics.ConsumerClosed()
	}
	return errors.Join(errs...)
}

func (r *ConsumerRegistry) closeConsumer(c core.Consumer) {
	if err := c.Close(); err != nil {
		r.logger.Warn().Err(err).Str("consumer_id", string(c.ID())).Msg("consumer close")
	}
	r.metrics.ConsumerClosed()
}

// Open counts consumers that exist locally.
func (r *ConsumerRegistry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries.Snapshot() {
		if e.consumer != nil {
			n++
		}
	}
	return n
}

func (r *ConsumerRegistry) Bundle(id domain.UserID) (Bundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[id]
	if !ok {
		return Bundle{}, false
	}
	return snapshotBundle(id, b), true
}

func (r *ConsumerRegistry) Bundles() []Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := slices.Sorted(maps.Keys(r.bundles))
	out := make([]Bundle, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshotBundle(id, r.bundles[id]))
	}
	return out
}

func snapshotBundle(id domain.UserID, b bundleState) Bundle {
	out := Bundle{ParticipantID: id, Tracks: make(map[domain.BundleSlot][]core.RemoteTrack, len(b))}
	for slot, tracks := range b {
		pids := slices.Sorted(maps.Keys(tracks))
		for _, pid := range pids {
			out.Tracks[slot] = append(out.Tracks[slot], tracks[pid])
		}
	}
	return out
}
