// Package presenter turns a tab's URL log into rows with diff marks, and
// carries out the panel's delete, clear, export and open actions.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/models"
)

// ClearPrompt is the question to confirm before Clear.
const ClearPrompt = "Are you sure you want to clear URL history for this tab?"

var ErrNotConfirmed = errors.New("presenter: clear was not confirmed")

// Store is the part of the history store a panel reads and mutates.
type Store interface {
	Log(ctx context.Context, tabID int) models.TabLog
	Delete(ctx context.Context, tabID, index int) error
	Clear(ctx context.Context, tabID int) error
}

// Panel presents the history of the inspected tab.
type Panel struct {
	store  Store
	tabID  int
	loc    *time.Location
	saver  Saver
	opener Opener
	copier Copier
}

type PanelOption func(*Panel)

func WithLocation(loc *time.Location) PanelOption {
	return func(p *Panel) { p.loc = loc }
}

func WithSaver(s Saver) PanelOption {
	return func(p *Panel) { p.saver = s }
}

func WithOpener(o Opener) PanelOption {
	return func(p *Panel) { p.opener = o }
}

func WithCopier(c Copier) PanelOption {
	return func(p *Panel) { p.copier = c }
}

func NewPanel(store Store, tabID int, opts ...PanelOption) *Panel {
	p := &Panel{
		store:  store,
		tabID:  tabID,
		loc:    time.Local,
		opener: BrowserOpener{},
		copier: ClipboardCopier{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Panel) TabID() int {
	return p.tabID
}

// Log is the tab's chronological log as stored.
func (p *Panel) Log(ctx context.Context) models.TabLog {
	return p.store.Log(ctx, p.tabID)
}

// Rows re-reads the store and renders newest first.
func (p *Panel) Rows(ctx context.Context) []Row {
	return BuildRows(p.store.Log(ctx, p.tabID), p.loc)
}

// Delete removes the entry at the chronological index.
func (p *Panel) Delete(ctx context.Context, index int) error {
	if err := p.store.Delete(ctx, p.tabID, index); err != nil {
		return fmt.Errorf("failed to delete entry %d of tab %d: %w", index, p.tabID, err)
	}
	log.WithFields(log.Fields{"tab": p.tabID, "index": index}).Debug("history entry deleted")
	return nil
}

// Clear empties the tab's log. The caller must have asked ClearPrompt first.
func (p *Panel) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := p.store.Clear(ctx, p.tabID); err != nil {
		return fmt.Errorf("failed to clear tab %d: %w", p.tabID, err)
	}
	log.WithField("tab", p.tabID).Info("history cleared")
	return nil
}

// Export snapshots the log. With a saver configured the file is also written,
// and the returned filename is where it landed.
func (p *Panel) Export(ctx context.Context, now time.Time) (Export, error) {
	data, err := MarshalExport(p.store.Log(ctx, p.tabID))
	if err != nil {
		return Export{}, err
	}
	export := Export{Filename: ExportFilename(p.tabID, now), Data: data}
	if p.saver == nil {
		return export, nil
	}
	saved, err := p.saver.Save(export.Filename, export.Data)
	if err != nil {
		return Export{}, fmt.Errorf("failed to save %s: %w", export.Filename, err)
	}
	export.Filename = saved
	return export, nil
}

// Open shows url in a new browser tab.
func (p *Panel) Open(url string) error {
	if p.opener == nil {
		return errors.New("presenter: no opener configured")
	}
	return p.opener.Open(url)
}

// Copy puts url on the clipboard.
func (p *Panel) Copy(url string) error {
	if p.copier == nil {
		return errors.New("presenter: no clipboard configured")
	}
	return p.copier.Copy(url)
}
