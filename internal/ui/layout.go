package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// Summary holds the dashboard counters shown under the header.
type Summary struct {
	Crops          int
	ActiveAlerts   int
	Unread         int
	PriorityUnread int
	// Stale lists sources whose last refresh failed.
	Stale []string
}

// Layout manages the dashboard layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	SummaryHeight   int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions. The
// header, summary row and status bar take one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		SummaryHeight:   1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.SummaryHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top header bar with a title and sync status.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		l.fill(theme.HeaderStyle, l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderSummary renders the counters row.
func (l Layout) RenderSummary(s Summary) string {
	parts := []string{
		fmt.Sprintf("Cultivos %d", s.Crops),
		fmt.Sprintf("Alertas activas %d", s.ActiveAlerts),
		fmt.Sprintf("Sin leer %d", s.Unread),
	}
	prio := fmt.Sprintf("Prioritarias %d", s.PriorityUnread)
	if s.PriorityUnread > 0 {
		prio = theme.PriorityStyle(model.PriorityHigh).Render(prio)
	}
	parts = append(parts, prio)

	line := strings.Join(parts, "  ·  ")
	if len(s.Stale) > 0 {
		line += "  " + theme.StaleStyle.Render("⚠ sin conexión: "+strings.Join(s.Stale, ", "))
	}
	return lipgloss.NewStyle().MaxWidth(l.Width).Render(theme.SummaryStyle.Render(line))
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, summary, content area and status bar.
func (l Layout) RenderWithFrame(header, summary, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		summary,
		content,
		statusBar,
	)
}

// fill renders gap columns in the background of style.
func (l Layout) fill(style lipgloss.Style, gap int) string {
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
