package observer

import (
	"context"
	"time"
)

// Signal is one navigation notification from a page. URL may be empty, in
// which case the observer asks the page for its current location.
type Signal struct {
	Channel Channel
	URL     string
}

// Page is the host environment an observer watches.
type Page interface {
	// URL returns the document's current location.
	URL(ctx context.Context) (string, error)
	// Signals is closed when the page goes away.
	Signals() <-chan Signal
}

// Run watches page until ctx is done or the page closes. It reports the
// initial URL first, then every document load and every distinct URL seen
// through a signal or a poll. An observer that already ran, reattached to the
// same tab, reports the current URL only if it moved in between.
func (o *Observer) Run(ctx context.Context, page Page) error {
	initialURL, err := page.URL(ctx)
	if err != nil {
		return err
	}
	o.Check(ctx, ChannelInitial, initialURL)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	signals := page.Signals()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			url := sig.URL
			if url == "" {
				if url, err = page.URL(ctx); err != nil {
					o.logger.WithError(err).Debug("location read failed after signal")
					continue
				}
			}
			if sig.Channel == ChannelLoad {
				o.Load(ctx, url)
				continue
			}
			o.Check(ctx, sig.Channel, url)
		case <-ticker.C:
			url, err := page.URL(ctx)
			if err != nil {
				// the next tick retries
				continue
			}
			o.Check(ctx, ChannelPoll, url)
		}
	}
}
