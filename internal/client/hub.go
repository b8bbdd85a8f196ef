package client

import (
	"context"
	"errors"
	"sync"
)

var ErrHubClosed = errors.New("hub closed")

// Hub shares one Poller between every watcher of the same request.
type Hub struct {
	fetcher FeedFetcher
	opts    []PollerOption

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	poller *Poller
	cancel context.CancelFunc

	// ready is closed once the initial load has finished; err holds its
	// failure. pending counts Subscribe calls still waiting on ready.
	ready   chan struct{}
	err     error
	pending int

	watchers map[int]chan Feed
	nextID   int
	last     *Feed
}

func NewHub(fetcher FeedFetcher, opts ...PollerOption) *Hub {
	return &Hub{
		fetcher: fetcher,
		opts:    opts,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe returns a channel carrying the request's feed, starting with the
// latest known copy. Concurrent subscribers of one request share a single
// initial load, which runs without holding the hub lock and is abandoned once
// every waiting caller's ctx is done. The subscription ends when ctx is
// cancelled or the returned func is called; the channel is then closed.
// Watchers that fall behind only see the newest feed.
func (h *Hub) Subscribe(ctx context.Context, requestID string) (<-chan Feed, func(), error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrHubClosed
	}
	sub, ok := h.subs[requestID]
	if !ok {
		pollCtx, cancel := context.WithCancel(context.Background())
		sub = &subscription{
			poller:   NewPoller(h.fetcher, requestID, h.opts...),
			cancel:   cancel,
			ready:    make(chan struct{}),
			watchers: make(map[int]chan Feed),
		}
		h.subs[requestID] = sub
		go h.start(pollCtx, requestID, sub)
	}
	sub.pending++
	h.mu.Unlock()

	select {
	case <-sub.ready:
	case <-ctx.Done():
		h.mu.Lock()
		sub.pending--
		h.release(requestID, sub)
		h.mu.Unlock()
		return nil, nil, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sub.pending--
	if h.closed {
		return nil, nil, ErrHubClosed
	}
	if sub.err != nil {
		return nil, nil, sub.err
	}

	id := sub.nextID
	sub.nextID++
	ch := make(chan Feed, 1)
	sub.watchers[id] = ch
	if sub.last != nil {
		ch <- *sub.last
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { h.unsubscribe(requestID, sub, id) })
	}
	stopAfter := context.AfterFunc(ctx, unsubscribe)
	return ch, func() {
		stopAfter()
		unsubscribe()
	}, nil
}

// start runs the initial load and then fans feeds out until the poller stops.
func (h *Hub) start(ctx context.Context, requestID string, sub *subscription) {
	feeds, err := sub.poller.Start(ctx)
	if err != nil {
		h.mu.Lock()
		sub.err = err
		if h.subs[requestID] == sub {
			delete(h.subs, requestID)
		}
		h.mu.Unlock()
		sub.cancel()
		close(sub.ready)
		return
	}
	close(sub.ready)
	h.fanOut(requestID, sub, feeds)
}

// Refresh forces an immediate fetch for a watched request.
func (h *Hub) Refresh(requestID string) {
	h.mu.Lock()
	sub, ok := h.subs[requestID]
	h.mu.Unlock()
	if ok {
		sub.poller.Refresh()
	}
}

// Watchers returns how many subscriptions share the request's poller.
func (h *Hub) Watchers(requestID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[requestID]; ok {
		return len(sub.watchers)
	}
	return 0
}

// Close stops every poller and closes every watcher channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		h.stop(id, sub)
	}
}

func (h *Hub) fanOut(requestID string, sub *subscription, feeds <-chan Feed) {
	for feed := range feeds {
		h.mu.Lock()
		if h.subs[requestID] != sub {
			h.mu.Unlock()
			continue
		}
		f := feed
		sub.last = &f
		for _, ch := range sub.watchers {
			// Replace an unread feed with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- f
		}
		h.mu.Unlock()
	}
}

func (h *Hub) unsubscribe(requestID string, sub *subscription, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := sub.watchers[id]
	if !ok {
		return
	}
	delete(sub.watchers, id)
	close(ch)
	h.release(requestID, sub)
}

// release stops the poller once nobody watches or waits on it. The caller
// must hold h.mu.
func (h *Hub) release(requestID string, sub *subscription) {
	if len(sub.watchers) == 0 && sub.pending == 0 && h.subs[requestID] == sub {
		h.stop(requestID, sub)
	}
}

// stop must be called with h.mu held.
func (h *Hub) stop(requestID string, sub *subscription) {
	sub.cancel()
	for id, ch := range sub.watchers {
		delete(sub.watchers, id)
		close(ch)
	}
	delete(h.subs, requestID)
}
