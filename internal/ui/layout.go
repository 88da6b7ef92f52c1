package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/pmcore/internal/theme"
)

// Layout splits the terminal into header, banner, content and a
// two-row status bar (toast line plus key hints).
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	BannerHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		BannerHeight:    1,
		StatusBarHeight: 2,
	}
}

// ContentHeight returns the rows left for the active view. The banner
// row is always reserved so toggling offline does not resize the list.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.BannerHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title with an unread badge on the left and
// the connection status on the right.
func (l Layout) RenderHeader(unread int, status string) string {
	title := theme.HeaderStyle.Render("Notifications")
	if unread > 0 {
		badge := theme.BadgeStyle.Render(fmt.Sprintf("[%d new]", unread))
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, badge)
	}

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		l.fill(theme.HeaderStyle, l.Width-lipgloss.Width(title)-lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderBanner renders text across the full width. An empty text
// yields a blank row.
func (l Layout) RenderBanner(text string) string {
	if text == "" {
		return ""
	}
	return theme.OfflineBannerStyle.Width(l.Width).Render(text)
}

// RenderStatusBar renders the toast line above the key hints.
func (l Layout) RenderStatusBar(toastLine, hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	bar := lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, toastLine, bar)
}

// RenderWithFrame stacks the rendered regions top to bottom.
func (l Layout) RenderWithFrame(header, banner, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		banner,
		content,
		statusBar,
	)
}

func (l Layout) fill(style lipgloss.Style, width int) string {
	if width < 0 {
		width = 0
	}
	return style.Render(
		lipgloss.NewStyle().
			Width(width).
			Background(style.GetBackground()).
			Render(""),
	)
}
