package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay: key bindings followed by the colour
// legend for priorities and recommendation types.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	legend := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.PriorityStyle(model.PriorityHigh).Render("alto"), "  ",
		theme.PriorityStyle(model.PriorityMedium).Render("medio"), "  ",
		theme.PriorityStyle(model.PriorityLow).Render("bajo"), "    ",
		theme.TypeStyle(model.TypeAlert).Render("alerta"),
		theme.TypeStyle(model.TypeWeather).Render("clima"),
		theme.TypeStyle(model.TypeCrop).Render("cultivo"),
		theme.TypeStyle(model.TypeSeasonal).Render("general"),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Legend"),
		legend,
	)

	return theme.DetailPanelStyle.
		Width(max(0, m.width-4)).
		Height(max(0, m.height-4)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
