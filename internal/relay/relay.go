// Package relay appends observed URL changes to the owning tab's log and
// evicts logs of closed tabs.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/models"
	"github.com/vincentbai/urltrail/internal/observer"
)

var (
	ErrUnsupportedMessage = errors.New("relay: unsupported message type")
	ErrInvalidEvent       = errors.New("relay: invalid event")
)

// Store is the part of the history store the relay writes to.
type Store interface {
	Append(ctx context.Context, tabID int, event models.URLEvent) error
	Evict(ctx context.Context, tabID int) error
}

type Relay struct {
	store Store
}

func New(store Store) *Relay {
	return &Relay{store: store}
}

// OnURLChanged appends the message's event to tabID's log.
func (r *Relay) OnURLChanged(ctx context.Context, tabID int, msg models.Message) error {
	if msg.Type != models.MessageTypeURLChange {
		return fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Type)
	}
	event := msg.Event()
	if err := models.ValidateEvent(event); err != nil {
		eventsRejected.Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := r.store.Append(ctx, tabID, event); err != nil {
		return fmt.Errorf("failed to append event for tab %d: %w", tabID, err)
	}
	eventsAppended.Inc()
	log.WithFields(log.Fields{"tab": tabID, "url": event.URL, "elapsed_ms": event.ElapsedMs}).Debug("url change recorded")
	return nil
}

// OnTabClosed drops tabID's log if there is one.
func (r *Relay) OnTabClosed(ctx context.Context, tabID int) error {
	if err := r.store.Evict(ctx, tabID); err != nil {
		return fmt.Errorf("failed to evict tab %d: %w", tabID, err)
	}
	tabsEvicted.Inc()
	log.WithField("tab", tabID).Info("tab closed, history evicted")
	return nil
}

// ForTab binds an emitter to tabID for in-process observers.
func (r *Relay) ForTab(tabID int) observer.Emitter {
	return observer.EmitterFunc(func(ctx context.Context, msg models.Message) error {
		return r.OnURLChanged(ctx, tabID, msg)
	})
}

// TabClosed lets the relay act as the tab supervisor's sink.
func (r *Relay) TabClosed(ctx context.Context, tabID int) error {
	return r.OnTabClosed(ctx, tabID)
}

var (
	eventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urltrail_relay_events_appended_total",
		Help: "URL change events appended to a tab log",
	})
	eventsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urltrail_relay_events_rejected_total",
		Help: "URL change events rejected by validation",
	})
	tabsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urltrail_relay_tabs_evicted_total",
		Help: "Tab logs evicted after the tab closed",
	})
)

func init() {
	prometheus.MustRegister(eventsAppended, eventsRejected, tabsEvicted)
}
