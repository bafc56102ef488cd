// Package tui is the terminal panel for one tab's URL history.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/presenter"
)

// EmptyMessage is shown while the tab has no history.
const EmptyMessage = "No URLs tracked yet for this tab..."

const defaultRefreshInterval = time.Second

type Model struct {
	ctx     context.Context
	panel   *presenter.Panel
	keys    KeyMap
	help    help.Model
	refresh time.Duration
	now     func() time.Time

	rows       []presenter.Row
	cursor     int
	offset     int
	confirming bool
	status     string
	failed     bool
	width      int
	height     int
}

type Option func(*Model)

// WithRefreshInterval sets how often the store is re-read.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.refresh = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func WithKeyMap(keys KeyMap) Option {
	return func(m *Model) { m.keys = keys }
}

func New(ctx context.Context, panel *presenter.Panel, opts ...Option) Model {
	m := Model{
		ctx:     ctx,
		panel:   panel,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		refresh: defaultRefreshInterval,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return RowsLoadedMsg{Rows: m.panel.Rows(m.ctx)}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampCursor()
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.load(), m.tick())

	case RowsLoadedMsg:
		m.rows = msg.Rows
		m.clampCursor()
		return m, nil

	case ActionDoneMsg:
		m.status = msg.Status
		m.failed = msg.Err != nil
		if msg.Err != nil {
			m.status = msg.Err.Error()
			log.WithError(msg.Err).Warn("panel action failed")
		}
		if msg.Reload {
			return m, m.load()
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirming {
			return m.updateConfirm(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirming = false
		return m, m.clear(true)
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.confirming = false
		m.status = "Clear cancelled"
		m.failed = false
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.clampCursor()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	case key.Matches(msg, m.keys.Clear):
		m.confirming = true
		return m, nil
	case key.Matches(msg, m.keys.Export):
		return m, m.export()
	case key.Matches(msg, m.keys.Delete):
		if row, ok := m.selected(); ok {
			return m, m.delete(row)
		}
	case key.Matches(msg, m.keys.Open):
		if row, ok := m.selected(); ok {
			return m, m.open(row)
		}
	case key.Matches(msg, m.keys.Copy):
		if row, ok := m.selected(); ok {
			return m, m.copy(row)
		}
	}
	return m, nil
}

func (m Model) selected() (presenter.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return presenter.Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) delete(row presenter.Row) tea.Cmd {
	return func() tea.Msg {
		if err := m.panel.Delete(m.ctx, row.Index); err != nil {
			return ActionDoneMsg{Err: err, Reload: true}
		}
		return ActionDoneMsg{Status: fmt.Sprintf("Deleted #%d", row.Position), Reload: true}
	}
}

func (m Model) clear(confirmed bool) tea.Cmd {
	return func() tea.Msg {
		if err := m.panel.Clear(m.ctx, confirmed); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "History cleared", Reload: true}
	}
}

func (m Model) export() tea.Cmd {
	return func() tea.Msg {
		export, err := m.panel.Export(m.ctx, m.now())
		if err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "Exported to " + export.Filename}
	}
}

func (m Model) open(row presenter.Row) tea.Cmd {
	return func() tea.Msg {
		if err := m.panel.Open(row.URL); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "Opened " + row.URL}
	}
}

func (m Model) copy(row presenter.Row) tea.Cmd {
	return func() tea.Msg {
		if err := m.panel.Copy(row.URL); err != nil {
			return ActionDoneMsg{Err: err}
		}
		return ActionDoneMsg{Status: "Copied " + row.URL}
	}
}

// clampCursor keeps the cursor on a row and inside the visible window.
func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if visible > 0 && m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset > len(m.rows)-1 {
		m.offset = max(len(m.rows)-1, 0)
	}
}

// visibleRows is the row capacity, 0 meaning unbounded before the first resize.
func (m Model) visibleRows() int {
	if m.height == 0 {
		return 0
	}
	// title, blank line, status, help
	return max(m.height-4, 1)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("URL history · tab %d", m.panel.TabID())))
	b.WriteString(secondaryStyle.Render(fmt.Sprintf("  %d entries", len(m.rows))))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(secondaryStyle.Render(EmptyMessage))
		b.WriteString("\n")
	} else {
		end := len(m.rows)
		if visible := m.visibleRows(); visible > 0 {
			end = min(m.offset+visible, len(m.rows))
		}
		for i := m.offset; i < end; i++ {
			b.WriteString(m.renderRow(i))
			b.WriteString("\n")
		}
	}

	switch {
	case m.confirming:
		b.WriteString(promptStyle.Render(presenter.ClearPrompt + " (y/n)"))
	case m.failed:
		b.WriteString(errorStyle.Render(m.status))
	default:
		b.WriteString(secondaryStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderRow(i int) string {
	row := m.rows[i]
	meta := fmt.Sprintf("%3d  %s  +%-8s", row.Position, row.Time, row.Elapsed)
	if i == m.cursor {
		return selectedRowStyle.Render("> "+meta) + " " + row.Diff.Render(styleFragment)
	}
	return "  " + secondaryStyle.Render(meta) + " " + row.Diff.Render(styleFragment)
}
