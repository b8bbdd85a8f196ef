package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionmatch/internal/metrics"
	"visionmatch/internal/models"
)

// scriptedFetcher answers each fetch through fn, numbering calls from 1.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int, opts FeedOptions) (*Feed, error)
}

func (f *scriptedFetcher) GetNegotiationMessages(ctx context.Context, _ string, opts FeedOptions) (*Feed, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(ctx, call, opts)
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func feedAt(version int64, ids ...string) *Feed {
	f := &Feed{Version: version, ETag: fmt.Sprintf("%q", fmt.Sprint(version))}
	for _, id := range ids {
		f.Messages = append(f.Messages, models.NegotiationMessage{ID: id, Type: models.MessageText})
	}
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receive(t *testing.T, ch <-chan Feed) Feed {
	t.Helper()
	select {
	case f, ok := <-ch:
		require.True(t, ok, "channel closed")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed")
	}
	return Feed{}
}

func TestPoller_InitialLoadError(t *testing.T) {
	fetcher := &scriptedFetcher{fn: func(context.Context, int, FeedOptions) (*Feed, error) {
		return nil, errors.New("connection refused")
	}}
	_, err := NewPoller(fetcher, "req_1").Start(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestPoller_DeliversOnlyChanges(t *testing.T) {
	fetcher := &scriptedFetcher{fn: func(_ context.Context, call int, opts FeedOptions) (*Feed, error) {
		switch {
		case call == 1:
			return feedAt(1, "01A"), nil
		case call == 2:
			return &Feed{NotModified: true, ETag: opts.ETag}, nil
		case call < 5:
			return feedAt(1, "01A"), nil
		default:
			return feedAt(2, "01A", "01B"), nil
		}
	}}
	p := NewPoller(fetcher, "req_1", WithInterval(10*time.Millisecond), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feeds, err := p.Start(ctx)
	require.NoError(t, err)

	first := receive(t, feeds)
	assert.Equal(t, int64(1), first.Version)

	second := receive(t, feeds)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, "01B", second.LastID())
	assert.GreaterOrEqual(t, fetcher.count(), 5)

	cancel()
	for range feeds {
	}
}

func TestPoller_KeepsLastFeedOnError(t *testing.T) {
	fetcher := &scriptedFetcher{fn: func(_ context.Context, call int, opts FeedOptions) (*Feed, error) {
		if call == 1 {
			return feedAt(1, "01A"), nil
		}
		assert.Equal(t, `"1"`, opts.ETag)
		return nil, errors.New("temporary outage")
	}}
	pm := metrics.NewPollerMetrics(prometheus.NewRegistry())
	p := NewPoller(fetcher, "req_1", WithInterval(5*time.Millisecond), WithLogger(quietLogger()), WithMetrics(pm))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feeds, err := p.Start(ctx)
	require.NoError(t, err)
	receive(t, feeds)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(pm.Errors) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), p.Last().Version)
	assert.Equal(t, "01A", p.Last().LastID())

	select {
	case f := <-feeds:
		t.Fatalf("unexpected feed after errors: version %d", f.Version)
	default:
	}
}

func TestPoller_DiscardsStaleResponses(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := &scriptedFetcher{fn: func(_ context.Context, call int, _ FeedOptions) (*Feed, error) {
		switch call {
		case 1:
			return feedAt(1, "01A"), nil
		case 2:
			close(started)
			<-release
			return feedAt(2, "01A", "01B"), nil
		default:
			return feedAt(3, "01A", "01B", "01C"), nil
		}
	}}
	pm := metrics.NewPollerMetrics(prometheus.NewRegistry())
	p := NewPoller(fetcher, "req_1", WithInterval(time.Hour), WithLogger(quietLogger()), WithMetrics(pm))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feeds, err := p.Start(ctx)
	require.NoError(t, err)
	receive(t, feeds)

	p.Refresh()
	<-started
	p.Refresh()

	newest := receive(t, feeds)
	assert.Equal(t, int64(3), newest.Version)

	close(release)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(pm.Stale) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), p.Last().Version)

	select {
	case f := <-feeds:
		t.Fatalf("stale feed delivered: version %d", f.Version)
	default:
	}
}

func TestPoller_CancelClosesChannel(t *testing.T) {
	fetcher := &scriptedFetcher{fn: func(ctx context.Context, call int, _ FeedOptions) (*Feed, error) {
		if call == 1 {
			return feedAt(1), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	p := NewPoller(fetcher, "req_1", WithInterval(5*time.Millisecond), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	feeds, err := p.Start(ctx)
	require.NoError(t, err)
	receive(t, feeds)

	require.Eventually(t, func() bool { return fetcher.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case _, ok := <-feeds:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}

	_, err = p.Start(context.Background())
	assert.Error(t, err)
}

func TestHub_SharesPoller(t *testing.T) {
	var mu sync.Mutex
	version := int64(1)
	fetcher := &scriptedFetcher{fn: func(context.Context, int, FeedOptions) (*Feed, error) {
		mu.Lock()
		defer mu.Unlock()
		return feedAt(version, "01A"), nil
	}}
	hub := NewHub(fetcher, WithInterval(time.Hour), WithLogger(quietLogger()))
	defer hub.Close()

	ctxA, cancelA := context.WithCancel(context.Background())
	a, _, err := hub.Subscribe(ctxA, "req_1")
	require.NoError(t, err)
	b, unsubscribeB, err := hub.Subscribe(context.Background(), "req_1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), receive(t, a).Version)
	assert.Equal(t, int64(1), receive(t, b).Version)
	assert.Equal(t, 2, hub.Watchers("req_1"))
	assert.Equal(t, 1, fetcher.count())

	mu.Lock()
	version = 2
	mu.Unlock()
	hub.Refresh("req_1")

	assert.Equal(t, int64(2), receive(t, a).Version)
	assert.Equal(t, int64(2), receive(t, b).Version)
	assert.Equal(t, 2, fetcher.count())

	cancelA()
	require.Eventually(t, func() bool { return hub.Watchers("req_1") == 1 }, 2*time.Second, 5*time.Millisecond)
	_, ok := <-a
	assert.False(t, ok)

	unsubscribeB()
	assert.Zero(t, hub.Watchers("req_1"))
	_, ok = <-b
	assert.False(t, ok)
}

func TestHub_InitialLoadErrorAndClose(t *testing.T) {
	fetcher := &scriptedFetcher{fn: func(context.Context, int, FeedOptions) (*Feed, error) {
		return nil, errors.New("unauthorized")
	}}
	hub := NewHub(fetcher)
	_, _, err := hub.Subscribe(context.Background(), "req_1")
	assert.ErrorContains(t, err, "unauthorized")
	assert.Zero(t, hub.Watchers("req_1"))

	hub.Close()
	_, _, err = hub.Subscribe(context.Background(), "req_1")
	assert.ErrorIs(t, err, ErrHubClosed)
}

type fetcherFunc func(ctx context.Context, requestID string, opts FeedOptions) (*Feed, error)

func (f fetcherFunc) GetNegotiationMessages(ctx context.Context, requestID string, opts FeedOptions) (*Feed, error) {
	return f(ctx, requestID, opts)
}

func TestHub_SlowInitialLoadDoesNotBlockOthers(t *testing.T) {
	slowStarted := make(chan struct{})
	slowAborted := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context, requestID string, _ FeedOptions) (*Feed, error) {
		if requestID == "slow" {
			close(slowStarted)
			<-ctx.Done()
			close(slowAborted)
			return nil, ctx.Err()
		}
		return feedAt(1, "01A"), nil
	})
	hub := NewHub(fetcher, WithInterval(time.Hour), WithLogger(quietLogger()))
	defer hub.Close()

	slowErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, _, err := hub.Subscribe(ctx, "slow")
		slowErr <- err
	}()
	<-slowStarted

	fastDone := make(chan error, 1)
	go func() {
		feeds, unsubscribe, err := hub.Subscribe(context.Background(), "fast")
		if err == nil {
			defer unsubscribe()
			<-feeds
		}
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe blocked behind another request's initial load")
	}

	select {
	case err := <-slowErr:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("subscribe ignored its context deadline")
	}

	select {
	case <-slowAborted:
	case <-time.After(time.Second):
		t.Fatal("abandoned initial load was not cancelled")
	}
	assert.Zero(t, hub.Watchers("slow"))
}

func TestHub_ConcurrentSubscribersShareInitialLoad(t *testing.T) {
	release := make(chan struct{})
	fetcher := &scriptedFetcher{fn: func(context.Context, int, FeedOptions) (*Feed, error) {
		<-release
		return feedAt(1, "01A"), nil
	}}
	hub := NewHub(fetcher, WithInterval(time.Hour), WithLogger(quietLogger()))
	defer hub.Close()

	results := make(chan Feed, 2)
	for range 2 {
		go func() {
			feeds, _, err := hub.Subscribe(context.Background(), "req_1")
			if !assert.NoError(t, err) {
				return
			}
			if f, ok := <-feeds; ok {
				results <- f
			}
		}()
	}

	require.Eventually(t, func() bool { return fetcher.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	for range 2 {
		select {
		case f := <-results:
			assert.Equal(t, int64(1), f.Version)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber never received the initial feed")
		}
	}
	assert.Equal(t, 1, fetcher.count())
	assert.Equal(t, 2, hub.Watchers("req_1"))
}
