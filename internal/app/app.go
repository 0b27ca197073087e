package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	appsync "github.com/nhle/climate-alerts/internal/sync"
	"github.com/nhle/climate-alerts/internal/ui"
	"github.com/nhle/climate-alerts/internal/ui/alertview"
	"github.com/nhle/climate-alerts/internal/ui/command"
	settingsview "github.com/nhle/climate-alerts/internal/ui/config"
	"github.com/nhle/climate-alerts/internal/ui/cropform"
	"github.com/nhle/climate-alerts/internal/ui/detail"
	helpview "github.com/nhle/climate-alerts/internal/ui/help"
	"github.com/nhle/climate-alerts/internal/ui/reclist"
)

// RecommendationStore is the part of the store the dashboard reads and
// mutates.
type RecommendationStore interface {
	Recommendations() []model.Recommendation
	Get(id string) (model.Recommendation, bool)
	MarkRead(id string) bool
	Dismiss(id string) bool
	MarkAllRead() int
	UnreadCount() int
	PriorityUnread() []model.Recommendation
	Changes() <-chan struct{}
}

// Poller is the part of the source poller the dashboard drives.
type Poller interface {
	Start() tea.Cmd
	Stop()
	Trigger() tea.Cmd
	GetStatuses() []appsync.SyncStatus
	WaitForNextResult() tea.Cmd
	Snapshot() recommend.Snapshot
	LastGenerated() time.Time
}

// CropAdder registers new crops.
type CropAdder interface {
	Add(c model.Crop) (model.Crop, error)
}

// Deps wires the dashboard to the running services.
type Deps struct {
	Store  RecommendationStore
	Poller Poller
	Crops  CropAdder
	Alerts alertview.Feed
	Clock  model.Clock
	Logger *slog.Logger
	// Settings backs the weather settings view. A nil Config disables it.
	Settings settingsview.Deps
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewAlerts
	ViewHelp
	ViewCommand
	ViewCropForm
	ViewSettings
)

// Model is the root Bubble Tea model that manages view routing and
// layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	store        RecommendationStore
	poller       Poller
	crops        CropAdder
	logger       *slog.Logger
	keys         *keys.KeyMap
	recList      reclist.Model
	detail       detail.Model
	alertView    alertview.Model
	helpView     helpview.Model
	commandView  command.Model
	cropForm     cropform.Model
	settings     settingsview.Model
	ready        bool
	flash        string
}

// New creates the root dashboard model.
func New(d Deps) Model {
	if d.Clock == nil {
		d.Clock = model.RealClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	k := keys.DefaultKeyMap()
	now := d.Clock.Now

	return Model{
		currentView: ViewList,
		store:       d.Store,
		poller:      d.Poller,
		crops:       d.Crops,
		logger:      d.Logger,
		keys:        k,
		recList:     reclist.New(d.Store, k, now, 80, 24),
		detail:      detail.New(k, 80, 24),
		alertView:   alertview.New(d.Alerts, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		cropForm:    cropform.New(now, 80, 24),
		settings:    settingsview.New(d.Settings, k, 80, 24),
	}
}

// Init loads the list, starts polling and subscribes to store changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.recList.Init(),
		m.poller.Start(),
		waitForStoreChange(m.store.Changes()),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.recList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.alertView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.cropForm.SetSize(w, h)
		m.settings.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.SyncResultMsg:
		if msg.Error != nil {
			m.logger.Debug("source refresh failed", "source", msg.Source, "error", msg.Error)
		}
		if m.currentView == ViewAlerts {
			m.alertView.Reload()
		}
		return m, m.poller.WaitForNextResult()

	case storeChangedMsg:
		cmds := []tea.Cmd{m.recList.LoadItems(), waitForStoreChange(m.store.Changes())}
		if id := m.detail.CurrentID(); id != "" {
			if rec, ok := m.store.Get(id); ok {
				m.detail.SetRecommendation(rec)
			} else {
				m.detail.Clear()
				if m.currentView == ViewDetail {
					m.currentView = ViewList
				}
			}
		}
		return m, tea.Batch(cmds...)

	case actionResultMsg:
		m.flash = msg.text
		return m, nil

	case reclist.SelectedMsg:
		rec, ok := m.store.Get(msg.ID)
		if !ok {
			return m, nil
		}
		m.detail.SetRecommendation(rec)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case detail.ActionMsg:
		switch msg.Action {
		case detail.ActionMarkRead:
			return m, m.markRead(msg.ID)
		case detail.ActionDismiss:
			m.currentView = ViewList
			return m, m.dismiss(msg.ID)
		}
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case alertview.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case alertview.ShareMsg:
		m.flash = msg.URL
		return m, nil

	case cropform.SubmittedMsg:
		m.currentView = ViewList
		return m, m.addCrop(msg.Crop)

	case cropform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case cropAddedMsg:
		if msg.err != nil {
			m.logger.Warn("registering crop failed", "error", msg.err)
			m.flash = "could not register crop: " + msg.err.Error()
			return m, nil
		}
		m.flash = fmt.Sprintf("registered %s", msg.crop.Name)
		return m, m.poller.Trigger()

	case settingsview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case settingsview.SavedMsg:
		m.logger.Info("weather settings saved", "provider", msg.Weather.Provider)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		m.flash = ""
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that are not owned by the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit, true
	}

	// Text entry views own every other key.
	switch m.currentView {
	case ViewCropForm, ViewSettings:
		return m, nil, false
	case ViewCommand:
		if msg.Type == tea.KeyEsc {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}
	if m.currentView == ViewList && m.recList.Searching() {
		return m, nil, false
	}

	switch msg.String() {
	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
	}

	if m.currentView != ViewList {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		m.poller.Stop()
		return m, tea.Quit, true

	case "r":
		m.flash = "refreshing sources"
		return m, m.poller.Trigger(), true

	case "A":
		return m, m.markAllRead(), true

	case "m":
		if rec, ok := m.recList.SelectedRecommendation(); ok {
			return m, m.markRead(rec.ID), true
		}
		return m, nil, true

	case "d":
		if rec, ok := m.recList.SelectedRecommendation(); ok {
			return m, m.dismiss(rec.ID), true
		}
		return m, nil, true

	case "a":
		m.openAlerts()
		return m, nil, true

	case "n":
		m.previousView = m.currentView
		m.currentView = ViewCropForm
		return m, m.cropForm.Start(), true

	case "c":
		m.openSettings()
		return m, nil, true
	}
	return m, nil, false
}

func (m *Model) openSettings() {
	if !m.settings.Available() {
		m.flash = "settings unavailable"
		return
	}
	m.settings.Open()
	m.previousView = ViewList
	m.currentView = ViewSettings
}

func (m *Model) openAlerts() {
	m.alertView.Reload()
	m.previousView = m.currentView
	m.currentView = ViewAlerts
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.recList, cmd = m.recList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewAlerts:
		m.alertView, cmd = m.alertView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewCropForm:
		m.cropForm, cmd = m.cropForm.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Alertas Climáticas", m.syncStatus())
	summary := m.layout.RenderSummary(m.Summary())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, summary, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.recList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewAlerts:
		return m.alertView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewCropForm:
		return m.cropForm.View()
	case ViewSettings:
		return m.settings.View()
	default:
		return ""
	}
}

// Summary computes the dashboard counters from the latest source
// snapshot and the store.
func (m Model) Summary() ui.Summary {
	snap := m.poller.Snapshot()
	s := ui.Summary{
		Crops:          len(snap.Crops),
		Unread:         m.store.UnreadCount(),
		PriorityUnread: len(m.store.PriorityUnread()),
	}
	for _, a := range snap.Alerts {
		if a.IsActive {
			s.ActiveAlerts++
		}
	}
	for _, st := range m.poller.GetStatuses() {
		if st.Stale() {
			s.Stale = append(s.Stale, string(st.Kind))
		}
	}
	return s
}

// syncStatus returns a short string describing the combined sync state.
func (m Model) syncStatus() string {
	var running int
	var last time.Time
	for _, s := range m.poller.GetStatuses() {
		if s.State == appsync.SyncRunning {
			running++
		}
		if s.LastSync.After(last) {
			last = s.LastSync
		}
	}

	var status string
	switch {
	case running > 0:
		status = fmt.Sprintf("syncing (%d)", running)
	case last.IsZero():
		status = "waiting for sources"
	default:
		status = "updated " + last.Local().Format("15:04")
	}
	if gen := m.poller.LastGenerated(); !gen.IsZero() {
		status += " · advice " + gen.Local().Format("15:04")
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.flash != "" {
		return m.flash
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "m mark read | d dismiss | j/k scroll | esc back"
	case ViewAlerts:
		return m.alertView.Hints()
	case ViewCropForm:
		return "enter next | esc cancel"
	case ViewSettings:
		return "e edit | enter test | esc back"
	default:
		hints := []string{"q quit", "? help", "m read", "d dismiss", "A read all", "a alerts", "n crop", "c settings", "r refresh"}
		if summary := m.recList.FilterSummary(); summary != "" {
			hints = append([]string{summary}, hints...)
		}
		return strings.Join(hints, " | ")
	}
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "refresh", "sync":
		m.flash = "refreshing sources"
		return m, m.poller.Trigger()
	case "read all", "read-all":
		return m, m.markAllRead()
	case "alerts":
		m.openAlerts()
		return m, nil
	case "new crop", "crop":
		m.previousView = ViewList
		m.currentView = ViewCropForm
		return m, m.cropForm.Start()
	case "filter all", "filter unread", "filter priority":
		m.currentView = ViewList
		return m, m.setListFilter(strings.TrimPrefix(cmd, "filter "))
	case "settings", "config":
		m.openSettings()
		return m, nil
	case "help":
		m.previousView = ViewList
		m.currentView = ViewHelp
		return m, nil
	case "quit", "q":
		m.poller.Stop()
		return m, tea.Quit
	default:
		m.flash = "unknown command: " + cmd
		return m, nil
	}
}

// setListFilter cycles the list filter until it reaches the named mode.
func (m *Model) setListFilter(name string) tea.Cmd {
	var cmd tea.Cmd
	for range 3 {
		if m.recList.Mode().String() == name {
			return m.recList.LoadItems()
		}
		m.recList, cmd = m.recList.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	return cmd
}
