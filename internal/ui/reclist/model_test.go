package reclist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
)

var now = time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC)

type staticSource []model.Recommendation

func (s staticSource) Recommendations() []model.Recommendation { return s }

func sample() staticSource {
	return staticSource{
		{ID: "a", Title: "Protección para Papa Norte - Helada", Priority: model.PriorityHigh, RelatedCrop: "Papa Norte", CreatedAt: now},
		{ID: "b", Title: "Alta Humedad Detectada", Priority: model.PriorityMedium, CreatedAt: now.Add(-time.Hour)},
		{ID: "c", Title: "Tiempo de Aporque - Papa Sur", Priority: model.PriorityHigh, RelatedCrop: "Papa Sur", IsRead: true, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "d", Title: "Temporada de Siembra", Priority: model.PriorityLow, Description: "época de siembra", CreatedAt: now.Add(-3 * time.Hour)},
	}
}

func ids(recs []model.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		mode  FilterMode
		query string
		want  []string
	}{
		{"all", FilterAll, "", []string{"a", "b", "c", "d"}},
		{"unread", FilterUnread, "", []string{"a", "b", "d"}},
		{"priority skips read", FilterPriority, "", []string{"a"}},
		{"search title", FilterAll, "papa", []string{"a", "c"}},
		{"search description", FilterAll, "ÉPOCA", []string{"d"}},
		{"search crop", FilterUnread, "papa sur", []string{}},
		{"blank query", FilterAll, "   ", []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), tt.mode, tt.query)))
		})
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{15 * 24 * time.Hour, "2w ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.age), now))
	}
	assert.Empty(t, RelativeTime(time.Time{}, now))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "ALTO ", PriorityLabel(model.PriorityHigh))
	assert.Equal(t, "MEDIO", PriorityLabel(model.PriorityMedium))
	assert.Equal(t, "CUL", TypeLabel(model.TypeCrop))
	assert.Equal(t, "GEN", TypeLabel(model.TypeSeasonal))
}

func loaded(t *testing.T) Model {
	t.Helper()
	m := New(sample(), keys.DefaultKeyMap(), func() time.Time { return now }, 80, 24)
	msg := m.LoadItems()()
	m, _ = m.Update(msg)
	return m
}

func TestModel_SelectEmitsID(t *testing.T) {
	m := loaded(t)

	rec, ok := m.SelectedRecommendation()
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedMsg{ID: "a"}, cmd())
}

func TestModel_CycleFilter(t *testing.T) {
	m := loaded(t)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FilterUnread, m.Mode())
	m, _ = m.Update(cmd())
	assert.Contains(t, m.FilterSummary(), "unread")

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FilterPriority, m.Mode())
	m, _ = m.Update(cmd())
	rec, ok := m.SelectedRecommendation()
	require.True(t, ok)
	assert.Equal(t, "a", rec.ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FilterAll, m.Mode())
	assert.Empty(t, m.FilterSummary())
}

func TestModel_EmptyState(t *testing.T) {
	m := New(staticSource{}, keys.DefaultKeyMap(), nil, 80, 24)
	m, _ = m.Update(m.LoadItems()())

	_, ok := m.SelectedRecommendation()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "No recommendations yet")
}
