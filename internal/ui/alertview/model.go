package alertview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source/alerts"
	"github.com/nhle/climate-alerts/internal/theme"
)

// Feed is the part of the alert feed the panel reads.
type Feed interface {
	Alerts(filter alerts.Filter) []model.Alert
	Stats() alerts.Stats
}

// CloseMsg signals the parent to leave the panel.
type CloseMsg struct{}

// ShareMsg carries a share link for the focused alert.
type ShareMsg struct {
	AlertID string
	URL     string
}

// Model lists the current climate alerts with their advice.
type Model struct {
	feed   Feed
	keys   *keys.KeyMap
	filter alerts.Filter
	items  []model.Alert
	stats  alerts.Stats
	cursor int
	width  int
	height int
}

// New creates the alert panel. Only active alerts are listed until the
// user toggles inactive ones in.
func New(feed Feed, k *keys.KeyMap, width, height int) Model {
	active := true
	return Model{
		feed:   feed,
		keys:   k,
		filter: alerts.Filter{Active: &active, SortBy: alerts.SortBySeverity},
		width:  width,
		height: height,
	}
}

// Reload re-reads the feed with the current filter.
func (m *Model) Reload() {
	m.items = m.feed.Alerts(m.filter)
	m.stats = m.feed.Stats()
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

// Update handles key input for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(k, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(k, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(k, m.keys.SortAlerts):
		if m.filter.SortBy == alerts.SortBySeverity {
			m.filter.SortBy = alerts.SortByDate
		} else {
			m.filter.SortBy = alerts.SortBySeverity
		}
		m.Reload()

	case key.Matches(k, m.keys.ToggleAll):
		if m.filter.Active == nil {
			active := true
			m.filter.Active = &active
		} else {
			m.filter.Active = nil
		}
		m.Reload()

	case key.Matches(k, m.keys.ShareAlert):
		if a, ok := m.Selected(); ok {
			return m, func() tea.Msg {
				return ShareMsg{AlertID: a.ID, URL: alerts.ShareURL(a)}
			}
		}
	}
	return m, nil
}

// Selected returns the focused alert.
func (m Model) Selected() (model.Alert, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.Alert{}, false
	}
	return m.items[m.cursor], true
}

// Hints describes the panel state for the status bar.
func (m Model) Hints() string {
	scope := "active"
	if m.filter.Active == nil {
		scope = "all"
	}
	return fmt.Sprintf("%s · by %s | j/k move | s sort | i inactive | w share | esc back", scope, m.filter.SortBy)
}

// View renders the panel.
func (m Model) View() string {
	header := theme.HeaderStyle.Render("Alertas climáticas")
	stats := theme.HelpStyle.Render(fmt.Sprintf(
		"%d total · %d activas · %d severidad alta",
		m.stats.Total, m.stats.Active, m.stats.HighSeverity,
	))

	if len(m.items) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Padding(1, 2).
			Render("No hay alertas para mostrar.")
		return lipgloss.JoinVertical(lipgloss.Left, header, stats, empty)
	}

	lines := []string{header, stats, ""}
	for i, a := range m.items {
		line := fmt.Sprintf("%s %s %s",
			theme.PriorityStyle(a.Severity).Render(strings.ToUpper(string(a.Severity))),
			theme.AlertTypeStyle(a.Type).Render(string(a.Type)),
			a.Title,
		)
		if !a.IsActive {
			line = theme.DimmedStyle.Render(line + " (inactiva)")
		}
		if i == m.cursor {
			lines = append(lines, theme.SelectedItemStyle.Render(line))
			lines = append(lines, m.renderDetail(a))
		} else {
			lines = append(lines, theme.ListItemStyle.Render(line))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderDetail(a model.Alert) string {
	width := max(20, min(m.width-6, 100))
	var b strings.Builder
	b.WriteString(a.Description)
	if len(a.AffectedAreas) > 0 {
		b.WriteString("\nZonas: " + strings.Join(a.AffectedAreas, ", "))
	}
	if !a.ValidUntil.IsZero() {
		b.WriteString("\nVigente hasta " + a.ValidUntil.Local().Format("2006-01-02 15:04"))
	}
	for _, r := range a.Recommendations {
		b.WriteString("\n• " + r)
	}
	return lipgloss.NewStyle().
		Width(width).
		PaddingLeft(4).
		Foreground(theme.ColorGray).
		Render(b.String())
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
