package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/vincentbai/urltrail/internal/presenter"
)

// Semantic colors, AdaptiveColor{Light, Dark}
var (
	TitleText     = lipgloss.AdaptiveColor{Light: "#1a1b26", Dark: "#c0caf5"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#8890a8", Dark: "#565f89"}
	SelectedRowBg = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#292e42"}
	StatusError   = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f7768e"}

	MarkChangedColor = lipgloss.AdaptiveColor{Light: "#8a6200", Dark: "#e0af68"}
	MarkAddedColor   = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#9ece6a"}
	MarkRemovedColor = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f7768e"}
	MarkUpdatedColor = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#7dcfff"}
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(TitleText).Bold(true)
	secondaryStyle   = lipgloss.NewStyle().Foreground(TextSecondary)
	selectedRowStyle = lipgloss.NewStyle().Background(SelectedRowBg)
	errorStyle       = lipgloss.NewStyle().Foreground(StatusError)
	promptStyle      = lipgloss.NewStyle().Foreground(MarkChangedColor).Bold(true)

	changedStyle = lipgloss.NewStyle().Foreground(MarkChangedColor)
	addedStyle   = lipgloss.NewStyle().Foreground(MarkAddedColor)
	removedStyle = lipgloss.NewStyle().Foreground(MarkRemovedColor).Strikethrough(true)
	updatedStyle = lipgloss.NewStyle().Foreground(MarkUpdatedColor)
)

// styleFragment colors a diff fragment by its mark.
func styleFragment(f presenter.Fragment) string {
	switch f.Mark {
	case presenter.MarkChanged:
		return changedStyle.Render(f.Text)
	case presenter.MarkAdded:
		return addedStyle.Render(f.Text)
	case presenter.MarkRemoved:
		return removedStyle.Render(f.Text)
	case presenter.MarkUpdated:
		return updatedStyle.Render(f.Text)
	default:
		return f.Text
	}
}
