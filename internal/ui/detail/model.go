package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Action is a user mutation requested from the detail view.
type Action string

const (
	ActionMarkRead Action = "read"
	ActionDismiss  Action = "dismiss"
)

// ActionMsg asks the parent to apply an action to the shown entry.
type ActionMsg struct {
	Action Action
	ID     string
}

// Model is the recommendation detail view.
type Model struct {
	rec      *model.Recommendation
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if m.rec != nil && !m.rec.IsRead {
				id := m.rec.ID
				return m, func() tea.Msg { return ActionMsg{Action: ActionMarkRead, ID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Dismiss):
			if m.rec != nil {
				id := m.rec.ID
				return m, func() tea.Msg { return ActionMsg{Action: ActionDismiss, ID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.rec == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No recommendation selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.rec == nil {
		return ""
	}
	rec := m.rec
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(rec.Title))

	state := theme.UnreadStyle.Render("sin leer")
	if rec.IsRead {
		state = theme.DimmedStyle.Render("leída")
	}
	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.PriorityStyle(rec.Priority).Render(strings.ToUpper(string(rec.Priority))),
		"  ",
		theme.TypeStyle(rec.Type).Render(string(rec.Type)),
		"  ",
		state,
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%-10s %s", metaStyle.Render(label), valStyle.Render(value)))
	}

	if rec.RelatedCrop != "" {
		meta("Cultivo:", rec.RelatedCrop)
	}
	if rec.RelatedAlert != "" {
		meta("Alerta:", rec.RelatedAlert)
	}
	meta("Creada:", rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	if rec.ValidUntil != nil {
		meta("Vigente:", rec.ValidUntil.Local().Format("2006-01-02 15:04"))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(0, min(m.width-4, 80))))
	sections = append(sections, "", separator, "")

	sections = append(sections, lipgloss.NewStyle().
		Width(max(20, min(m.width-4, 100))).
		Render(rec.Description))

	if len(rec.Actions) > 0 {
		sections = append(sections, "", lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite).
			Render("Acciones recomendadas"))
		for i, a := range rec.Actions {
			sections = append(sections, fmt.Sprintf("  %d. %s", i+1, a))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetRecommendation updates the entry being displayed.
func (m *Model) SetRecommendation(rec model.Recommendation) {
	m.rec = &rec
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Clear removes the displayed entry, e.g. after it was dismissed.
func (m *Model) Clear() {
	m.rec = nil
	m.viewport.SetContent("")
}

// CurrentID returns the id of the shown entry, or "".
func (m Model) CurrentID() string {
	if m.rec == nil {
		return ""
	}
	return m.rec.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.rec != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
