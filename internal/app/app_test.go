package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/recommend"
	"github.com/nhle/climate-alerts/internal/source"
	"github.com/nhle/climate-alerts/internal/source/alerts"
	"github.com/nhle/climate-alerts/internal/store"
	appsync "github.com/nhle/climate-alerts/internal/sync"
	"github.com/nhle/climate-alerts/internal/ui/command"
	settingsview "github.com/nhle/climate-alerts/internal/ui/config"
	"github.com/nhle/climate-alerts/internal/ui/cropform"
	"github.com/nhle/climate-alerts/internal/ui/reclist"
	"github.com/nhle/climate-alerts/tests/testutil"
)

var july = time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)

type fakePoller struct {
	started, stopped bool
	triggers         int
	snap             recommend.Snapshot
	statuses         []appsync.SyncStatus
	generated        time.Time
}

func (p *fakePoller) Start() tea.Cmd                    { p.started = true; return nil }
func (p *fakePoller) Stop()                             { p.stopped = true }
func (p *fakePoller) Trigger() tea.Cmd                  { p.triggers++; return nil }
func (p *fakePoller) GetStatuses() []appsync.SyncStatus { return p.statuses }
func (p *fakePoller) WaitForNextResult() tea.Cmd        { return nil }
func (p *fakePoller) Snapshot() recommend.Snapshot      { return p.snap }
func (p *fakePoller) LastGenerated() time.Time          { return p.generated }

type fakeCrops struct {
	added []model.Crop
	err   error
}

func (f *fakeCrops) Add(c model.Crop) (model.Crop, error) {
	if f.err != nil {
		return model.Crop{}, f.err
	}
	c.ID = "new-id"
	f.added = append(f.added, c)
	return c, nil
}

type noFeed struct{}

func (noFeed) Alerts(alerts.Filter) []model.Alert { return nil }
func (noFeed) Stats() alerts.Stats                { return alerts.Stats{} }

type nopPersister struct{}

func (nopPersister) Load(context.Context) ([]model.Recommendation, error) { return nil, nil }
func (nopPersister) Save(context.Context, []model.Recommendation) error   { return nil }
func (nopPersister) Close() error                                         { return nil }

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(nopPersister{}, nil)
	t.Cleanup(func() { _ = s.Close() })
	s.Update(func([]model.Recommendation) []model.Recommendation {
		return []model.Recommendation{
			{ID: "a", Title: "Protección para Papa Norte - Helada", Type: model.TypeAlert, Priority: model.PriorityHigh, RelatedCrop: "Papa Norte", CreatedAt: july},
			{ID: "b", Title: "Alta Humedad Detectada", Type: model.TypeWeather, Priority: model.PriorityMedium, CreatedAt: july.Add(-time.Minute)},
			{ID: "c", Title: "Temporada de Siembra", Type: model.TypeSeasonal, Priority: model.PriorityLow, IsRead: true, CreatedAt: july.Add(-time.Hour)},
		}
	})
	return s
}

type harness struct {
	m      Model
	store  *store.Store
	poller *fakePoller
	crops  *fakeCrops
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: seeded(t), poller: &fakePoller{}, crops: &fakeCrops{}}
	h.m = New(Deps{
		Store:  h.store,
		Poller: h.poller,
		Crops:  h.crops,
		Alerts: noFeed{},
		Clock:  testutil.NewFixedClock(july),
	})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	h.send(h.m.recList.LoadItems()())
	return h
}

// send delivers msg and returns the command it produced.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

// run delivers msg and keeps feeding back the message of each resulting
// command until the chain ends. Batched commands are not followed.
func (h *harness) run(msg tea.Msg) {
	for range 5 {
		cmd := h.send(msg)
		if cmd == nil {
			return
		}
		msg = cmd()
		if msg == nil {
			return
		}
		if _, batch := msg.(tea.BatchMsg); batch {
			return
		}
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApp_InitStartsPoller(t *testing.T) {
	h := newHarness(t)
	require.NotNil(t, h.m.Init())
	assert.True(t, h.poller.started)
}

func TestApp_OpenDetailAndMarkRead(t *testing.T) {
	h := newHarness(t)

	h.run(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, h.m.currentView)
	assert.Equal(t, "a", h.m.detail.CurrentID())

	h.run(key("m"))
	rec, ok := h.store.Get("a")
	require.True(t, ok)
	assert.True(t, rec.IsRead)
	assert.Equal(t, "marked as read", h.m.flash)
}

func TestApp_DismissFromDetailReturnsToList(t *testing.T) {
	h := newHarness(t)

	h.run(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(key("d"))

	assert.Equal(t, ViewList, h.m.currentView)
	_, ok := h.store.Get("a")
	assert.False(t, ok)
}

func TestApp_StoreChangeClosesDetailOfRemovedEntry(t *testing.T) {
	h := newHarness(t)
	h.run(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, h.m.currentView)

	h.store.Dismiss("a")
	h.send(storeChangedMsg{})

	assert.Equal(t, ViewList, h.m.currentView)
	assert.Empty(t, h.m.detail.CurrentID())
}

func TestApp_ListShortcuts(t *testing.T) {
	h := newHarness(t)

	h.run(key("m"))
	assert.Equal(t, 1, h.store.UnreadCount())

	h.run(key("A"))
	assert.Zero(t, h.store.UnreadCount())
	assert.Equal(t, "1 marked as read", h.m.flash)

	h.run(key("A"))
	assert.Equal(t, "nothing unread", h.m.flash)

	h.run(key("d"))
	assert.Len(t, h.store.Recommendations(), 2)

	h.run(key("r"))
	assert.Equal(t, 1, h.poller.triggers)
}

func TestApp_Summary(t *testing.T) {
	h := newHarness(t)
	h.poller.snap = recommend.Snapshot{
		Crops: []model.Crop{{ID: "c1", Name: "Papa Norte"}, {ID: "c2", Name: "Quinua Alta"}},
		Alerts: []model.Alert{
			{ID: "1", IsActive: true},
			{ID: "2", IsActive: false},
		},
	}
	h.poller.statuses = []appsync.SyncStatus{
		{Kind: source.KindWeather, State: appsync.SyncError, Error: errors.New("down")},
		{Kind: source.KindCrops, State: appsync.SyncIdle, LastSync: july},
	}

	s := h.m.Summary()
	assert.Equal(t, 2, s.Crops)
	assert.Equal(t, 1, s.ActiveAlerts)
	assert.Equal(t, 2, s.Unread)
	assert.Equal(t, 1, s.PriorityUnread)
	assert.Equal(t, []string{"weather"}, s.Stale)

	view := h.m.View()
	assert.Contains(t, view, "Cultivos 2")
	assert.Contains(t, view, "weather")
}

func TestApp_HeaderShowsLastGeneration(t *testing.T) {
	h := newHarness(t)
	assert.NotContains(t, h.m.syncStatus(), "advice")

	h.poller.statuses = []appsync.SyncStatus{{Kind: source.KindCrops, State: appsync.SyncIdle, LastSync: july}}
	h.poller.generated = july.Add(-5 * time.Minute)

	want := "updated " + july.Local().Format("15:04") + " · advice " + july.Add(-5*time.Minute).Local().Format("15:04")
	assert.Equal(t, want, h.m.syncStatus())
}

func TestApp_HelpToggle(t *testing.T) {
	h := newHarness(t)

	h.run(key("?"))
	assert.Equal(t, ViewHelp, h.m.currentView)
	h.run(key("?"))
	assert.Equal(t, ViewList, h.m.currentView)
}

func TestApp_CommandFilter(t *testing.T) {
	h := newHarness(t)

	h.send(key(":"))
	require.Equal(t, ViewCommand, h.m.currentView)

	h.send(key("q"))
	assert.False(t, h.poller.stopped, "typing in the palette does not quit")

	h.run(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, h.m.currentView)

	cmd := h.send(command.CommandMsg("filter priority"))
	assert.Equal(t, reclist.FilterPriority, h.m.recList.Mode())
	require.NotNil(t, cmd)
	h.send(cmd())
	rec, ok := h.m.recList.SelectedRecommendation()
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID)

	h.send(command.CommandMsg("bogus"))
	assert.Equal(t, "unknown command: bogus", h.m.flash)
}

func TestApp_CropSubmitTriggersRefresh(t *testing.T) {
	h := newHarness(t)

	h.run(cropform.SubmittedMsg{Crop: model.Crop{Name: "Haba Sur", Type: "haba"}})

	require.Len(t, h.crops.added, 1)
	assert.Equal(t, "registered Haba Sur", h.m.flash)
	assert.Equal(t, 1, h.poller.triggers)
	assert.Equal(t, ViewList, h.m.currentView)
}

func TestApp_CropSubmitFailure(t *testing.T) {
	h := newHarness(t)
	h.crops.err = errors.New("duplicate crop id")

	h.run(cropform.SubmittedMsg{Crop: model.Crop{Name: "Haba Sur", Type: "haba"}})

	assert.Contains(t, h.m.flash, "duplicate crop id")
	assert.Zero(t, h.poller.triggers)
}

func TestApp_QuitStopsPoller(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, h.poller.stopped)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_SettingsUnavailableWithoutConfig(t *testing.T) {
	h := newHarness(t)

	h.run(key("c"))
	assert.Equal(t, ViewList, h.m.currentView)
	assert.Equal(t, "settings unavailable", h.m.flash)
}

func TestApp_SettingsOpenAndClose(t *testing.T) {
	h := newHarness(t)
	cfg := model.DefaultAppConfig()
	h.m.settings = settingsview.New(settingsview.Deps{Config: cfg}, h.m.keys, 100, 27)

	h.run(key("c"))
	require.Equal(t, ViewSettings, h.m.currentView)
	assert.Contains(t, h.m.View(), "Huancavelica Centro")

	h.send(key("q"))
	assert.False(t, h.poller.stopped, "settings view owns plain keys")

	h.run(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, h.m.currentView)
}
