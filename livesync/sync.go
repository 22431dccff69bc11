// Package livesync keeps a query's result set live.
//
// A Sync starts Initializing and serves the one-shot snapshot it was built
// with, becomes Live on the first store delivery and never goes back, and ends
// Detached when closed or when its context is cancelled.
package livesync

import (
	"chatline/contract"
	chaterrors "chatline/errors"
	"chatline/query"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type State int

const (
	Initializing State = iota
	Live
	Detached
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Live:
		return "live"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// View is the current best known result set.
// Loading is set while initializing without any one-shot snapshot to show.
type View[T any] struct {
	Items   []T
	State   State
	Loading bool
}

type Sync[T any] struct {
	store   contract.IStore
	query   query.Query
	mapFn   func([]contract.Record) []T
	log     *slog.Logger
	changes chan struct{}
	done    chan struct{}

	mu           sync.RWMutex
	state        State
	oneShot      []T
	hasOneShot   bool
	live         []T
	version      uint64
	subscription contract.Subscription
	started      bool
}

// New builds a Sync for q. oneShot is the previously fetched result set; nil means none.
func New[T any](store contract.IStore, q query.Query, mapFn func([]contract.Record) []T, oneShot []T, log *slog.Logger) *Sync[T] {
	return &Sync[T]{
		store:      store,
		query:      q,
		mapFn:      mapFn,
		log:        log,
		changes:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		oneShot:    oneShot,
		hasOneShot: oneShot != nil,
	}
}

// Start mounts the sync: it registers the live subscription and detaches
// when ctx is cancelled. A failed registration leaves the sync Detached.
func (s *Sync[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.state == Detached {
		s.mu.Unlock()
		return chaterrors.ErrSubscriptionClosed
	}
	s.started = true
	s.mu.Unlock()

	subscription, err := s.store.Subscribe(ctx, s.query, s)
	if err != nil {
		s.Close()
		return fmt.Errorf("subscribe %s: %w", s.query.Collection, err)
	}

	s.mu.Lock()
	if s.state == Detached {
		// Closed while subscribing.
		s.mu.Unlock()
		subscription.Unsubscribe()
		return chaterrors.ErrSubscriptionClosed
	}
	s.subscription = subscription
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return nil
}

// Consume accepts a store delivery. Deliveries older than the current one are ignored.
func (s *Sync[T]) Consume(_ context.Context, snapshot contract.Snapshot) error {
	items := s.mapFn(snapshot.Records)

	s.mu.Lock()
	switch {
	case s.state == Detached:
		s.mu.Unlock()
		return chaterrors.ErrSubscriptionClosed
	case s.state == Live && snapshot.Version < s.version:
		s.mu.Unlock()
		s.log.Debug("Stale snapshot ignored", "collection", s.query.Collection,
			"version", snapshot.Version, "current", s.version)
		return nil
	}
	if s.state == Initializing {
		s.log.Debug("Live snapshot available", "collection", s.query.Collection, "version", snapshot.Version)
	}
	s.state = Live
	s.version = snapshot.Version
	s.live = items
	select {
	case s.changes <- struct{}{}:
	default:
	}
	s.mu.Unlock()
	return nil
}

func (s *Sync[T]) Current() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.state {
	case Live:
		return View[T]{Items: s.live, State: Live}
	case Initializing:
		return View[T]{Items: s.oneShot, State: Initializing, Loading: !s.hasOneShot}
	default:
		items := s.live
		if items == nil {
			items = s.oneShot
		}
		return View[T]{Items: items, State: Detached}
	}
}

func (s *Sync[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Changes signals that Current has moved. Signals coalesce: readers should
// call Current after each one. The channel is closed once Detached.
func (s *Sync[T]) Changes() <-chan struct{} {
	return s.changes
}

// Close detaches the sync and cancels its subscription. It is idempotent.
func (s *Sync[T]) Close() {
	s.mu.Lock()
	if s.state == Detached {
		s.mu.Unlock()
		return
	}
	s.state = Detached
	subscription := s.subscription
	s.subscription = nil
	close(s.changes)
	close(s.done)
	s.mu.Unlock()

	if subscription != nil {
		subscription.Unsubscribe()
	}
	s.log.Debug("Live query detached", "collection", s.query.Collection)
}

const SnapshotType = "snapshot"

// Envelope is the wire form of a View, as pushed to live channel clients.
type Envelope[T any] struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Loading bool   `json:"loading"`
	Items   []T    `json:"items"`
}

func (v View[T]) Envelope() Envelope[T] {
	items := v.Items
	if items == nil {
		items = []T{}
	}
	return Envelope[T]{Type: SnapshotType, State: v.State.String(), Loading: v.Loading, Items: items}
}
