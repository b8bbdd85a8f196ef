package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"visionmatch/internal/metrics"
)

const DefaultPollInterval = 3 * time.Second

// FeedFetcher is the part of Client a Poller needs.
type FeedFetcher interface {
	GetNegotiationMessages(ctx context.Context, requestID string, opts FeedOptions) (*Feed, error)
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

func WithMetrics(m *metrics.PollerMetrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

// Poller keeps a local copy of one request's message feed. Every fetch is
// tagged with a generation; a response older than the newest applied one is
// dropped, so a slow fetch can never roll the view back.
type Poller struct {
	fetcher   FeedFetcher
	requestID string
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.PollerMetrics

	refresh chan struct{}

	mu      sync.Mutex
	started bool
	last    *Feed
}

func NewPoller(fetcher FeedFetcher, requestID string, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		requestID: requestID,
		interval:  DefaultPollInterval,
		logger:    slog.Default(),
		refresh:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fetchResult struct {
	gen  uint64
	feed *Feed
	err  error
}

// Start loads the feed once and then polls until ctx is cancelled. The
// initial load's error is returned; later errors are logged and the last good
// feed is kept. The channel receives the initial feed and then every change,
// and is closed once polling has stopped.
func (p *Poller) Start(ctx context.Context) (<-chan Feed, error) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil, fmt.Errorf("poller for %s already started", p.requestID)
	}
	p.started = true
	p.mu.Unlock()

	p.metrics.Tick()
	first, err := p.fetcher.GetNegotiationMessages(ctx, p.requestID, FeedOptions{})
	if err != nil {
		return nil, fmt.Errorf("initial feed load for %s: %w", p.requestID, err)
	}
	p.setLast(first)

	out := make(chan Feed, 1)
	out <- *first
	go p.loop(ctx, out)
	return out, nil
}

// Refresh asks for an immediate fetch, e.g. right after posting a message.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Last returns the most recent feed applied, nil before Start succeeds.
func (p *Poller) Last() *Feed {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	f := *p.last
	return &f
}

func (p *Poller) setLast(f *Feed) {
	p.mu.Lock()
	p.last = f
	p.mu.Unlock()
}

func (p *Poller) loop(ctx context.Context, out chan<- Feed) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	results := make(chan fetchResult)
	var inflight sync.WaitGroup
	defer func() {
		inflight.Wait()
		close(out)
	}()

	var next, applied uint64
	launch := func() {
		next++
		gen := next
		etag := p.Last().ETag
		p.metrics.Tick()
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			feed, err := p.fetcher.GetNegotiationMessages(ctx, p.requestID, FeedOptions{ETag: etag})
			select {
			case results <- fetchResult{gen: gen, feed: feed, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			launch()
		case <-p.refresh:
			launch()
		case res := <-results:
			if res.gen <= applied {
				p.metrics.Discarded()
				continue
			}
			if res.err != nil {
				if ctx.Err() != nil {
					return
				}
				p.metrics.Error()
				p.logger.Warn("feed poll failed, keeping last feed", "request_id", p.requestID, "generation", res.gen, "error", res.err)
				continue
			}
			applied = res.gen
			if res.feed.NotModified {
				continue
			}
			prev := p.Last()
			p.setLast(res.feed)
			if !changed(prev, res.feed) {
				continue
			}
			select {
			case out <- *res.feed:
			case <-ctx.Done():
				return
			}
		}
	}
}

// changed reports whether next differs from prev by version, ETag or last message.
func changed(prev, next *Feed) bool {
	if prev == nil {
		return true
	}
	if next.Version != prev.Version || next.ETag != prev.ETag {
		return true
	}
	return next.LastID() != prev.LastID() || len(next.Messages) != len(prev.Messages)
}
