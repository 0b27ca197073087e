package reclist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// Item wraps a model.Recommendation so it can be used in a bubbles/list.
type Item struct {
	Rec model.Recommendation
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Rec.Title }

// Title returns the recommendation title for the list.
func (i Item) Title() string { return i.Rec.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{string(i.Rec.Type), string(i.Rec.Priority)}
	if i.Rec.RelatedCrop != "" {
		parts = append(parts, i.Rec.RelatedCrop)
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering recommendations.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single recommendation line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	rec := it.Rec
	isSelected := index == m.Index()

	marker := theme.DimmedStyle.Render("○")
	if !rec.IsRead {
		marker = theme.UnreadStyle.Render("●")
	}

	priBadge := theme.PriorityStyle(rec.Priority).Render(PriorityLabel(rec.Priority))
	typeBadge := theme.TypeStyle(rec.Type).Render(TypeLabel(rec.Type))

	crop := ""
	if rec.RelatedCrop != "" {
		crop = lipgloss.NewStyle().
			Foreground(theme.ColorGreen).
			Render(" · " + rec.RelatedCrop)
	}

	now := time.Now()
	if d.now != nil {
		now = d.now()
	}
	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(RelativeTime(rec.CreatedAt, now))

	line := fmt.Sprintf(
		"%s %s %s %s%s  %s",
		marker, priBadge, typeBadge, rec.Title, crop, timeStr,
	)

	if rec.IsRead {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// RelativeTime returns a human-friendly age of t as seen at now.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

// PriorityLabel returns a short fixed-width label for a priority.
func PriorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "ALTO "
	case model.PriorityMedium:
		return "MEDIO"
	case model.PriorityLow:
		return "BAJO "
	default:
		return "  ?  "
	}
}

// TypeLabel returns a short label for a recommendation type.
func TypeLabel(t model.RecommendationType) string {
	switch t {
	case model.TypeAlert:
		return "ALR"
	case model.TypeWeather:
		return "CLI"
	case model.TypeCrop:
		return "CUL"
	case model.TypeSeasonal:
		return "GEN"
	default:
		return "???"
	}
}
