// Package observer detects URL changes of one browser tab and reports each
// distinct URL exactly once.
//
// Four complementary channels feed a single entry point, Check: back/forward
// navigation, history push/replace, fragment changes and a periodic poll. The
// duplicate guard lives in Check so that however many channels notice the same
// navigation, one event goes out. A new document load bypasses the guard:
// every load reports its URL, even a reload of the same one.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/models"
)

// DefaultPollInterval bounds detection latency when no event channel fires.
const DefaultPollInterval = 500 * time.Millisecond

// Channel names the mechanism that noticed a navigation.
type Channel int

const (
	ChannelInitial Channel = iota
	ChannelPopState
	ChannelHistoryAPI
	ChannelHashChange
	ChannelPoll
	// ChannelLoad is a new document in the tab, such as a link, a typed URL or a reload.
	ChannelLoad
)

func (c Channel) String() string {
	switch c {
	case ChannelInitial:
		return "initial"
	case ChannelPopState:
		return "popstate"
	case ChannelHistoryAPI:
		return "history_api"
	case ChannelHashChange:
		return "hashchange"
	case ChannelPoll:
		return "poll"
	case ChannelLoad:
		return "load"
	default:
		return "unknown"
	}
}

// Emitter delivers a message to the relay. Delivery is best effort.
type Emitter interface {
	Emit(ctx context.Context, msg models.Message) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, msg models.Message) error

func (f EmitterFunc) Emit(ctx context.Context, msg models.Message) error {
	return f(ctx, msg)
}

// Observer holds the per-tab detection state.
type Observer struct {
	emitter      Emitter
	now          func() time.Time
	pollInterval time.Duration
	logger       *log.Entry

	mu            sync.Mutex
	started       bool
	currentURL    string
	lastTimestamp int64
}

type Option func(*Observer)

func WithClock(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func WithLogger(entry *log.Entry) Option {
	return func(o *Observer) { o.logger = entry }
}

func New(emitter Emitter, opts ...Option) *Observer {
	o := &Observer{
		emitter:      emitter,
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		logger:       log.WithField("component", "observer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start reports the page's initial URL unconditionally, with zero elapsed time.
func (o *Observer) Start(ctx context.Context, initialURL string) {
	o.load(ctx, ChannelInitial, initialURL)
}

// Load reports a new document unconditionally. Timing restarts with the
// document, so the event has zero elapsed time.
func (o *Observer) Load(ctx context.Context, url string) {
	signalsTotal.WithLabelValues(ChannelLoad.String()).Inc()
	o.load(ctx, ChannelLoad, url)
}

func (o *Observer) load(ctx context.Context, channel Channel, url string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastTimestamp = o.now().UnixMilli()
	o.started = true
	o.track(ctx, channel, url)
}

// Check reports url if it differs from the last reported one. It returns
// whether an event was emitted.
func (o *Observer) Check(ctx context.Context, channel Channel, url string) bool {
	signalsTotal.WithLabelValues(channel.String()).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		o.lastTimestamp = o.now().UnixMilli()
		o.started = true
	} else if url == o.currentURL {
		return false
	}
	o.track(ctx, channel, url)
	return true
}

// CurrentURL is the last reported URL.
func (o *Observer) CurrentURL() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentURL
}

// track emits and advances the state. Callers hold mu.
func (o *Observer) track(ctx context.Context, channel Channel, url string) {
	now := o.now().UnixMilli()
	msg := models.Message{
		Type:      models.MessageTypeURLChange,
		URL:       url,
		Timestamp: now,
		ElapsedMs: now - o.lastTimestamp,
	}
	if err := o.emitter.Emit(ctx, msg); err != nil {
		o.logger.WithError(err).WithField("url", url).Debug("url change dropped")
	}
	urlChangesTotal.Inc()
	o.logger.WithFields(log.Fields{"channel": channel.String(), "url": url, "elapsed_ms": msg.ElapsedMs}).Debug("url changed")

	o.lastTimestamp = now
	o.currentURL = url
}

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urltrail_observer_signals_total",
			Help: "Navigation signals seen by observers, per detection channel",
		},
		[]string{"channel"},
	)
	urlChangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urltrail_observer_url_changes_total",
			Help: "Distinct URL changes reported by observers",
		},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal, urlChangesTotal)
}
