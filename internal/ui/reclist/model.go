package reclist

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// Source supplies the current recommendation list, newest first.
type Source interface {
	Recommendations() []model.Recommendation
}

// ItemsLoadedMsg is sent when recommendations have been read from the store.
type ItemsLoadedMsg struct {
	Recs []model.Recommendation
}

// SelectedMsg is sent when the user opens a recommendation.
type SelectedMsg struct {
	ID string
}

// FilterMode narrows the list.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterUnread
	FilterPriority
)

func (f FilterMode) String() string {
	switch f {
	case FilterUnread:
		return "unread"
	case FilterPriority:
		return "priority"
	default:
		return "all"
	}
}

// Apply returns the entries of recs that pass the mode and the search
// query, in their original order.
func Apply(recs []model.Recommendation, mode FilterMode, query string) []model.Recommendation {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.Recommendation
	for _, r := range recs {
		switch mode {
		case FilterUnread:
			if r.IsRead {
				continue
			}
		case FilterPriority:
			if r.IsRead || r.Priority != model.PriorityHigh {
				continue
			}
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.RelatedCrop), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Model is the recommendation list view.
type Model struct {
	list        list.Model
	source      Source
	keys        *keys.KeyMap
	mode        FilterMode
	query       string
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a list view over src. now supplies the reference time for
// relative timestamps; nil means time.Now.
func New(src Source, k *keys.KeyMap, now func() time.Time, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-2)
	l.Title = "Recomendaciones"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search recommendations..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		source:      src,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the initial list.
func (m Model) Init() tea.Cmd {
	return m.LoadItems()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ItemsLoadedMsg:
		filtered := Apply(msg.Recs, m.mode, m.query)
		items := make([]list.Item, len(filtered))
		for i, r := range filtered {
			items[i] = Item{Rec: r}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = m.searchInput.Value()
		return m, m.LoadItems()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.LoadItems()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		rec, ok := m.SelectedRecommendation()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{ID: rec.ID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleFilter):
		m.mode = (m.mode + 1) % 3
		return m, m.LoadItems()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SelectedRecommendation returns the focused entry.
func (m Model) SelectedRecommendation() (model.Recommendation, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Recommendation{}, false
	}
	return it.Rec, true
}

// Mode returns the active filter mode.
func (m Model) Mode() FilterMode { return m.mode }

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

// FilterSummary describes the active filters, or "" when none apply.
func (m Model) FilterSummary() string {
	var parts []string
	if m.mode != FilterAll {
		parts = append(parts, "showing "+m.mode.String())
	}
	if m.query != "" {
		parts = append(parts, "search: "+m.query)
	}
	return strings.Join(parts, " | ")
}

// View renders the list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when the list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.mode != FilterAll || m.query != "" {
		return style.Render("No matching recommendations.\nPress tab or esc to widen the view.")
	}

	return style.Render(
		"No recommendations yet.\n\n" +
			"Press n to register a crop; advice appears once crops or alerts are known.",
	)
}

// LoadItems returns a tea.Cmd that reads the current list.
func (m Model) LoadItems() tea.Cmd {
	s := m.source
	return func() tea.Msg {
		return ItemsLoadedMsg{Recs: s.Recommendations()}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
