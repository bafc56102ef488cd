package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentbai/urltrail/internal/cdp"
	"github.com/vincentbai/urltrail/internal/models"
	"github.com/vincentbai/urltrail/internal/observer"
)

type stubPage struct {
	url     string
	signals chan observer.Signal
	once    sync.Once
}

func (p *stubPage) URL(context.Context) (string, error) { return p.url, nil }
func (p *stubPage) Signals() <-chan observer.Signal    { return p.signals }
func (p *stubPage) Close() error {
	p.once.Do(func() { close(p.signals) })
	return nil
}

type stubBrowser struct {
	mu       sync.Mutex
	targets  []cdp.Target
	pages    map[string]*stubPage
	listErr  error
	attachFn func(cdp.Target) error
	attaches map[string]int
}

func (b *stubBrowser) Targets(context.Context) ([]cdp.Target, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]cdp.Target(nil), b.targets...), nil
}

func (b *stubBrowser) Attach(_ context.Context, target cdp.Target) (AttachedPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attachFn != nil {
		if err := b.attachFn(target); err != nil {
			return nil, err
		}
	}
	page := &stubPage{url: target.URL, signals: make(chan observer.Signal, 4)}
	b.pages[target.ID] = page
	b.attaches[target.ID]++
	return page, nil
}

func (b *stubBrowser) page(targetID string) (*stubPage, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[targetID], b.attaches[targetID]
}

func (b *stubBrowser) setTargets(targets ...cdp.Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = targets
}

type recordingSink struct {
	mu     sync.Mutex
	events map[int][]string
	closed []int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[int][]string)}
}

func (s *recordingSink) ForTab(tabID int) observer.Emitter {
	return observer.EmitterFunc(func(_ context.Context, msg models.Message) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events[tabID] = append(s.events[tabID], msg.URL)
		return nil
	})
}

func (s *recordingSink) TabClosed(_ context.Context, tabID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, tabID)
	return nil
}

func (s *recordingSink) snapshot() (map[int][]string, []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make(map[int][]string, len(s.events))
	for k, v := range s.events {
		events[k] = append([]string(nil), v...)
	}
	return events, append([]int(nil), s.closed...)
}

func TestSupervisorObservesAndEvictsTabs(t *testing.T) {
	browser := &stubBrowser{pages: make(map[string]*stubPage), attaches: make(map[string]int)}
	browser.setTargets(
		cdp.Target{ID: "A", Type: "page", URL: "https://a.test/"},
		cdp.Target{ID: "B", Type: "page", URL: "https://b.test/"},
	)
	sink := newRecordingSink()
	supervisor := NewSupervisor(browser, sink, Options{DiscoveryInterval: 5 * time.Millisecond, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events) == 2
	}, 2*time.Second, time.Millisecond)

	events, _ := sink.snapshot()
	assert.Equal(t, []string{"https://a.test/"}, events[1])
	assert.Equal(t, []string{"https://b.test/"}, events[2])

	// B closes: it disappears from the target list.
	browser.setTargets(cdp.Target{ID: "A", Type: "page", URL: "https://a.test/"})
	require.Eventually(t, func() bool {
		_, closed := sink.snapshot()
		return len(closed) == 1
	}, 2*time.Second, time.Millisecond)
	_, closed := sink.snapshot()
	assert.Equal(t, []int{2}, closed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	// Stopping the watcher is not a tab closure.
	_, closed = sink.snapshot()
	assert.Equal(t, []int{2}, closed)
}

func TestSupervisorReattachesDroppedPageWithoutEvicting(t *testing.T) {
	browser := &stubBrowser{pages: make(map[string]*stubPage), attaches: make(map[string]int)}
	browser.setTargets(cdp.Target{ID: "A", Type: "page", URL: "https://a.test/"})
	sink := newRecordingSink()
	supervisor := NewSupervisor(browser, sink, Options{DiscoveryInterval: 5 * time.Millisecond, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervisor.Run(ctx)

	require.Eventually(t, func() bool {
		page, _ := browser.page("A")
		return page != nil
	}, 2*time.Second, time.Millisecond)

	page, _ := browser.page("A")
	page.signals <- observer.Signal{Channel: observer.ChannelHistoryAPI, URL: "https://a.test/next"}
	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events[1]) == 2
	}, 2*time.Second, time.Millisecond)

	// The connection drops while the target is still listed.
	page.Close()
	require.Eventually(t, func() bool {
		_, attaches := browser.page("A")
		return attaches == 2
	}, 2*time.Second, time.Millisecond)

	reattached, _ := browser.page("A")
	reattached.signals <- observer.Signal{Channel: observer.ChannelHistoryAPI, URL: "https://a.test/later"}
	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events[1]) == 4
	}, 2*time.Second, time.Millisecond)

	events, closed := sink.snapshot()
	assert.Empty(t, closed)
	assert.Equal(t, []string{"https://a.test/", "https://a.test/next", "https://a.test/", "https://a.test/later"}, events[1])
	assert.NotContains(t, events, 2, "a re-attached target keeps its tab id")
}

func TestSupervisorReportsTargetGoneAfterDrop(t *testing.T) {
	browser := &stubBrowser{pages: make(map[string]*stubPage), attaches: make(map[string]int)}
	browser.setTargets(cdp.Target{ID: "A", Type: "page", URL: "https://a.test/"})
	sink := newRecordingSink()
	supervisor := NewSupervisor(browser, sink, Options{DiscoveryInterval: 5 * time.Millisecond, PollInterval: time.Hour})

	attempts := 0
	browser.mu.Lock()
	browser.attachFn = func(cdp.Target) error {
		attempts++
		if attempts > 1 {
			return errors.New("target busy")
		}
		return nil
	}
	browser.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervisor.Run(ctx)

	require.Eventually(t, func() bool {
		page, _ := browser.page("A")
		return page != nil
	}, 2*time.Second, time.Millisecond)

	page, _ := browser.page("A")
	page.Close()
	time.Sleep(30 * time.Millisecond)
	_, closed := sink.snapshot()
	assert.Empty(t, closed, "a dropped connection is not a closed tab")

	browser.setTargets()
	require.Eventually(t, func() bool {
		_, closed := sink.snapshot()
		return len(closed) == 1
	}, 2*time.Second, time.Millisecond)
	_, closed = sink.snapshot()
	assert.Equal(t, []int{1}, closed)
}

func TestSupervisorSurvivesDiscoveryAndAttachErrors(t *testing.T) {
	browser := &stubBrowser{pages: make(map[string]*stubPage), attaches: make(map[string]int), listErr: errors.New("connection refused")}
	sink := newRecordingSink()
	supervisor := NewSupervisor(browser, sink, Options{DiscoveryInterval: 5 * time.Millisecond, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervisor.Run(ctx)

	time.Sleep(20 * time.Millisecond)

	attempts := 0
	browser.mu.Lock()
	browser.listErr = nil
	browser.targets = []cdp.Target{{ID: "A", Type: "page", URL: "https://a.test/"}}
	browser.attachFn = func(cdp.Target) error {
		attempts++
		if attempts < 3 {
			return errors.New("target busy")
		}
		return nil
	}
	browser.mu.Unlock()

	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events[1]) == 1
	}, 2*time.Second, time.Millisecond)
}
