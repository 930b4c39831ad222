package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/remindme/internal/theme"
)

// Layout manages the terminal layout dimensions: a one-line header, the
// content area, an optional delivery banner and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with a title on the left and
// the sync status on the right.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		l.fill(theme.HeaderStyle, lipgloss.Width(titleRendered)+lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints or a
// transient message.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.fill(theme.StatusBarStyle, lipgloss.Width(rendered)),
	)
}

// RenderBanner frames a delivered notification across the full width.
func (l Layout) RenderBanner(title, body string) string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorYellow).
		Render("⏰ " + title)

	content := heading
	if body != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, heading, body)
	}

	w := l.Width - 2
	if w < 10 {
		w = 10
	}
	return theme.BannerStyle.Width(w).Render(content)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, the optional banner, the content area and the status bar.
// The content is clipped so that the frame never exceeds the terminal.
func (l Layout) RenderWithFrame(
	header string,
	banner string,
	content string,
	statusBar string,
) string {
	parts := []string{header}
	height := l.ContentHeight()
	if banner != "" {
		parts = append(parts, banner)
		height -= lipgloss.Height(banner)
	}
	if height < 1 {
		height = 1
	}
	parts = append(parts,
		lipgloss.NewStyle().MaxHeight(height).Render(content),
		statusBar,
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// fill returns a styled spacer covering the width left over by used.
func (l Layout) fill(style lipgloss.Style, used int) string {
	gap := l.Width - used
	if gap < 0 {
		gap = 0
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(style.GetBackground()).
			Render(""),
	)
}
