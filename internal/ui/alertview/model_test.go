package alertview

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/source/alerts"
)

type fakeFeed []model.Alert

func (f fakeFeed) Alerts(filter alerts.Filter) []model.Alert { return filter.Apply(f) }
func (f fakeFeed) Stats() alerts.Stats                       { return alerts.ComputeStats(f) }

var base = time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)

func feed() fakeFeed {
	return fakeFeed{
		{ID: "1", Type: model.AlertFrost, Severity: model.PriorityMedium, Title: "Riesgo de helada moderada", IsActive: true, CreatedAt: base},
		{ID: "3", Type: model.AlertDrought, Severity: model.PriorityHigh, Title: "Sequía", IsActive: true, CreatedAt: base.Add(-time.Hour),
			Recommendations: []string{"Priorizar riego"}},
		{ID: "2", Type: model.AlertHeavyRain, Severity: model.PriorityLow, Title: "Lluvias", IsActive: false, CreatedAt: base.Add(time.Hour)},
	}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func selectedID(t *testing.T, m Model) string {
	t.Helper()
	a, ok := m.Selected()
	require.True(t, ok)
	return a.ID
}

func TestAlertView_DefaultsToActiveBySeverity(t *testing.T) {
	m := New(feed(), keys.DefaultKeyMap(), 80, 24)
	m.Reload()

	assert.Equal(t, "3", selectedID(t, m))
	m, _ = m.Update(runeKey("j"))
	assert.Equal(t, "1", selectedID(t, m))
	m, _ = m.Update(runeKey("j"))
	assert.Equal(t, "1", selectedID(t, m), "cursor stops at the last alert")

	assert.Contains(t, m.View(), "Riesgo de helada moderada")
	assert.NotContains(t, m.View(), "Lluvias")
}

func TestAlertView_ToggleInactiveAndSort(t *testing.T) {
	m := New(feed(), keys.DefaultKeyMap(), 80, 24)
	m.Reload()

	m, _ = m.Update(runeKey("i"))
	assert.Contains(t, m.View(), "(inactiva)")
	assert.True(t, strings.HasPrefix(m.Hints(), "all · by severity"))

	m, _ = m.Update(runeKey("s"))
	m, _ = m.Update(runeKey("k"))
	m, _ = m.Update(runeKey("k"))
	assert.Equal(t, "2", selectedID(t, m), "newest first")
}

func TestAlertView_Share(t *testing.T) {
	m := New(feed(), keys.DefaultKeyMap(), 80, 24)
	m.Reload()

	_, cmd := m.Update(runeKey("w"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(ShareMsg)
	require.True(t, ok)
	assert.Equal(t, "3", msg.AlertID)
	assert.True(t, strings.HasPrefix(msg.URL, "https://wa.me/?text="))
}

func TestAlertView_EmptyAndClose(t *testing.T) {
	m := New(fakeFeed{}, keys.DefaultKeyMap(), 80, 24)
	m.Reload()

	_, ok := m.Selected()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "No hay alertas")

	_, cmd := m.Update(runeKey("w"))
	assert.Nil(t, cmd)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}
