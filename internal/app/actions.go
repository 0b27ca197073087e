package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/climate-alerts/internal/model"
)

// storeChangedMsg is sent when the recommendation store committed a
// mutation, whether from the engine or from the user.
type storeChangedMsg struct{}

// actionResultMsg reports the outcome of a user mutation.
type actionResultMsg struct {
	text string
}

// cropAddedMsg is sent after a crop was written to the registry.
type cropAddedMsg struct {
	crop model.Crop
	err  error
}

// waitForStoreChange returns a command that blocks until the store
// signals a change. Re-issue it after each storeChangedMsg.
func waitForStoreChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// markRead flags a recommendation as read.
func (m Model) markRead(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if !s.MarkRead(id) {
			return actionResultMsg{}
		}
		return actionResultMsg{text: "marked as read"}
	}
}

// dismiss removes a recommendation.
func (m Model) dismiss(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		if !s.Dismiss(id) {
			return actionResultMsg{}
		}
		return actionResultMsg{text: "dismissed"}
	}
}

// markAllRead flags every recommendation as read.
func (m Model) markAllRead() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		n := s.MarkAllRead()
		if n == 0 {
			return actionResultMsg{text: "nothing unread"}
		}
		return actionResultMsg{text: fmt.Sprintf("%d marked as read", n)}
	}
}

// addCrop writes a new crop to the registry.
func (m Model) addCrop(c model.Crop) tea.Cmd {
	r := m.crops
	return func() tea.Msg {
		if r == nil {
			return cropAddedMsg{err: fmt.Errorf("no crop registry configured")}
		}
		added, err := r.Add(c)
		return cropAddedMsg{crop: added, err: err}
	}
}
