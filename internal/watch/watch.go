// Package watch attaches an observer to every open page of a browser and
// reports tab closure when a page goes away.
package watch

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/cdp"
	"github.com/vincentbai/urltrail/internal/observer"
	"golang.org/x/sync/errgroup"
)

const closeTimeout = 5 * time.Second

// Sink receives what the observers produce.
type Sink interface {
	ForTab(tabID int) observer.Emitter
	TabClosed(ctx context.Context, tabID int) error
}

// AttachedPage is a page the supervisor owns until it closes.
type AttachedPage interface {
	observer.Page
	Close() error
}

// Browser lists pages and attaches to them.
type Browser interface {
	Targets(ctx context.Context) ([]cdp.Target, error)
	Attach(ctx context.Context, target cdp.Target) (AttachedPage, error)
}

// DevTools is a Browser reached through its remote debugging endpoint.
type DevTools struct {
	Endpoint string
	Client   *http.Client
}

func (d DevTools) Targets(ctx context.Context) ([]cdp.Target, error) {
	return cdp.ListTargets(ctx, d.Client, d.Endpoint)
}

func (d DevTools) Attach(ctx context.Context, target cdp.Target) (AttachedPage, error) {
	conn, err := cdp.Dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, err
	}
	page, err := cdp.OpenPage(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return page, nil
}

type Options struct {
	DiscoveryInterval time.Duration
	PollInterval      time.Duration
}

type tab struct {
	id     int
	cancel context.CancelFunc
	// closing is set once the target has left the browser's target list.
	closing atomic.Bool
}

// Supervisor gives every page target a tab id and an observer.
type Supervisor struct {
	browser Browser
	sink    Sink
	opts    Options

	nextID    int
	ids       map[string]int
	tabs      map[string]*tab
	observers map[string]*observer.Observer
}

func NewSupervisor(browser Browser, sink Sink, opts Options) *Supervisor {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = observer.DefaultPollInterval
	}
	return &Supervisor{
		browser: browser,
		sink:    sink,
		opts:    opts,
		ids:       make(map[string]int),
		tabs:      make(map[string]*tab),
		observers: make(map[string]*observer.Observer),
	}
}

// Run supervises until ctx is cancelled. Open tabs are left untouched on exit.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	exited := make(chan string, 16)

	ticker := time.NewTicker(s.opts.DiscoveryInterval)
	defer ticker.Stop()

	s.discover(gctx, g, exited)
	for {
		select {
		case <-gctx.Done():
			for _, t := range s.tabs {
				t.cancel()
			}
			return g.Wait()
		case targetID := <-exited:
			if t, ok := s.tabs[targetID]; ok && t.closing.Load() {
				delete(s.observers, targetID)
			}
			delete(s.tabs, targetID)
		case <-ticker.C:
			s.discover(gctx, g, exited)
		}
	}
}

func (s *Supervisor) discover(ctx context.Context, g *errgroup.Group, exited chan<- string) {
	targets, err := s.browser.Targets(ctx)
	if err != nil {
		log.WithError(err).Warn("watch: target discovery failed")
		return
	}

	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		seen[target.ID] = true
		if _, running := s.tabs[target.ID]; running {
			continue
		}
		page, err := s.browser.Attach(ctx, target)
		if err != nil {
			log.WithError(err).WithField("target", target.ID).Warn("watch: attach failed")
			continue
		}
		s.start(ctx, g, exited, target, page)
	}

	for targetID, t := range s.tabs {
		if !seen[targetID] {
			t.closing.Store(true)
			t.cancel()
		}
	}
	// Detached earlier and gone before it could be re-attached.
	for targetID := range s.observers {
		if _, running := s.tabs[targetID]; running || seen[targetID] {
			continue
		}
		delete(s.observers, targetID)
		tabID := s.ids[targetID]
		g.Go(func() error {
			s.notifyClosed(ctx, tabID)
			return nil
		})
	}
}

func (s *Supervisor) notifyClosed(ctx context.Context, tabID int) {
	if ctx.Err() != nil {
		return
	}
	logger := log.WithField("tab", tabID)
	closeCtx, done := context.WithTimeout(context.Background(), closeTimeout)
	defer done()
	if err := s.sink.TabClosed(closeCtx, tabID); err != nil {
		logger.WithError(err).Debug("watch: tab close notification dropped")
	}
	logger.Info("watch: tab closed")
}

// start runs an observer for target. A target that is re-attached after its
// connection dropped keeps its tab id and observer, so its log carries on.
func (s *Supervisor) start(ctx context.Context, g *errgroup.Group, exited chan<- string, target cdp.Target, page AttachedPage) {
	tabID, known := s.ids[target.ID]
	if !known {
		s.nextID++
		tabID = s.nextID
		s.ids[target.ID] = tabID
	}
	logger := log.WithFields(log.Fields{"tab": tabID, "target": target.ID})

	o, resumed := s.observers[target.ID]
	if !resumed {
		o = observer.New(s.sink.ForTab(tabID), observer.WithPollInterval(s.opts.PollInterval), observer.WithLogger(logger))
		s.observers[target.ID] = o
	}
	tabCtx, cancel := context.WithCancel(ctx)
	t := &tab{id: tabID, cancel: cancel}
	s.tabs[target.ID] = t

	logger.WithFields(log.Fields{"url": target.URL, "resumed": resumed}).Info("watch: observing tab")

	g.Go(func() error {
		defer cancel()
		if err := o.Run(tabCtx, page); err != nil {
			logger.WithError(err).Warn("watch: observer stopped")
		}
		_ = page.Close()

		// Only a target gone from the list is a closed tab. A dropped
		// connection is re-attached by the next discovery.
		if t.closing.Load() {
			s.notifyClosed(ctx, tabID)
		} else if ctx.Err() == nil {
			logger.Info("watch: page detached, will re-attach")
		}

		select {
		case exited <- target.ID:
		case <-ctx.Done():
		}
		return nil
	})
}
