package tui

import (
	"time"

	"github.com/vincentbai/urltrail/internal/presenter"
)

// RowsLoadedMsg carries a fresh read of the tab's history.
type RowsLoadedMsg struct {
	Rows []presenter.Row
}

// TickMsg triggers the periodic refresh.
type TickMsg time.Time

// ActionDoneMsg reports the outcome of a panel action.
type ActionDoneMsg struct {
	Status string
	Err    error
	// Reload is set when the action wrote to the store.
	Reload bool
}
