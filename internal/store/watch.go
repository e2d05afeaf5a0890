package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/metrics"
)

type readFunc func(ctx context.Context) (Snapshot, error)

// Subscription delivers snapshots of one path. Delivery keeps only the newest
// undelivered snapshot, so a slow reader never blocks writers.
type Subscription struct {
	path   []string
	read   readFunc
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ch     chan Snapshot
	last   []byte
	closed bool

	once    sync.Once
	onClose func()
}

// Updates returns the snapshot stream. It is closed by Close.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *Subscription) offer(snap Snapshot) {
	fp := snap.fingerprint()
	if s.last != nil && bytes.Equal(fp, s.last) {
		return
	}
	s.last = fp
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// refresh re-reads the path and delivers it if it changed. Holding mu across
// the read keeps deliveries in read order.
func (s *Subscription) refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	snap, err := s.read(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return err
	}
	s.offer(snap)
	return nil
}

// watchers tracks the live subscriptions of one backend.
type watchers struct {
	backend string
	poll    time.Duration

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newWatchers(backend string, poll time.Duration) *watchers {
	return &watchers{
		backend: backend,
		poll:    poll,
		subs:    make(map[*Subscription]struct{}),
	}
}

// watch registers the subscription before its first read, so a write that
// commits during that read still triggers a refresh.
func (w *watchers) watch(ctx context.Context, segs []string, read readFunc) (*Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		path:   segs,
		read:   read,
		ctx:    sctx,
		cancel: cancel,
		ch:     make(chan Snapshot, 1),
	}
	sub.onClose = func() {
		w.mu.Lock()
		delete(w.subs, sub)
		w.mu.Unlock()
		metrics.StoreSubscriptions.WithLabelValues(w.backend).Dec()
	}

	w.mu.Lock()
	w.subs[sub] = struct{}{}
	w.mu.Unlock()
	metrics.StoreSubscriptions.WithLabelValues(w.backend).Inc()

	if err := sub.refresh(); err != nil {
		sub.Close()
		return nil, err
	}
	if sctx.Err() != nil {
		sub.Close()
		return nil, sctx.Err()
	}

	go func() {
		<-sctx.Done()
		sub.Close()
	}()
	if w.poll > 0 {
		go w.pollLoop(sub)
	}
	return sub, nil
}

func (w *watchers) pollLoop(sub *Subscription) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-ticker.C:
			w.refresh(sub)
		}
	}
}

func (w *watchers) refresh(sub *Subscription) {
	if err := sub.refresh(); err != nil {
		metrics.StoreRefreshErrors.WithLabelValues(w.backend).Inc()
		logging.Warn().Err(err).Str("backend", w.backend).Str("path", joinPath(sub.path)).Msg("subscription refresh failed")
	}
}

// notify refreshes every subscription whose path overlaps a written path.
func (w *watchers) notify(written [][]string) {
	w.mu.Lock()
	var hit []*Subscription
	for sub := range w.subs {
		for _, p := range written {
			if overlaps(sub.path, p) {
				hit = append(hit, sub)
				break
			}
		}
	}
	w.mu.Unlock()

	for _, sub := range hit {
		w.refresh(sub)
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	subs := make([]*Subscription, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}
