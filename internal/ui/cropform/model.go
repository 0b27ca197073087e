package cropform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

const dateLayout = "2006-01-02"

// SubmittedMsg is dispatched when the farmer registers a crop.
type SubmittedMsg struct {
	Crop model.Crop
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// CropTypes are the species offered in the form, as registry keys.
var CropTypes = []huh.Option[string]{
	huh.NewOption("Papa", model.CropTypePotato),
	huh.NewOption("Maíz", "maiz"),
	huh.NewOption("Quinua", "quinua"),
	huh.NewOption("Haba", "haba"),
	huh.NewOption("Cebada", "cebada"),
	huh.NewOption("Olluco", "olluco"),
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	name         string
	cropType     string
	location     string
	plantingDate string
}

// Model is the Bubble Tea model for the crop registration form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	now    func() time.Time
	width  int
	height int
}

// New creates a crop form. now bounds the planting date; nil means
// time.Now.
func New(now func() time.Time, width, height int) Model {
	if now == nil {
		now = time.Now
	}
	return Model{
		fb:     &formBindings{cropType: model.CropTypePotato},
		now:    now,
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{
		cropType:     model.CropTypePotato,
		plantingDate: m.now().Format(dateLayout),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the crop form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		crop, err := m.fb.crop()
		m.form = nil
		if err != nil {
			return m, func() tea.Msg { return CancelMsg{} }
		}
		return m, func() tea.Msg { return SubmittedMsg{Crop: crop} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the crop form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Registrar cultivo") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Nombre").
				Placeholder("Papa Norte").
				Value(&m.fb.name).
				Validate(validateRequired("Nombre")),
			huh.NewSelect[string]().
				Title("Tipo").
				Options(CropTypes...).
				Value(&m.fb.cropType),
			huh.NewInput().
				Title("Ubicación").
				Placeholder("Acobamba").
				Value(&m.fb.location),
			huh.NewInput().
				Title("Fecha de siembra").
				Placeholder("YYYY-MM-DD (opcional)").
				Value(&m.fb.plantingDate).
				Validate(ValidatePlantingDate(m.now)),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// crop converts the bound values. The registry assigns the id.
func (fb formBindings) crop() (model.Crop, error) {
	c := model.Crop{
		Name:     strings.TrimSpace(fb.name),
		Type:     fb.cropType,
		Location: strings.TrimSpace(fb.location),
	}
	if s := strings.TrimSpace(fb.plantingDate); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return model.Crop{}, err
		}
		c.PlantingDate = t
	}
	return c, nil
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s es obligatorio", fieldName)
		}
		return nil
	}
}

// ValidatePlantingDate accepts an empty value or a YYYY-MM-DD date that
// is not after today.
func ValidatePlantingDate(now func() time.Time) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return fmt.Errorf("formato inválido, use YYYY-MM-DD")
		}
		n := now()
		today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.Local)
		if t.After(today) {
			return fmt.Errorf("la fecha de siembra no puede ser futura")
		}
		return nil
	}
}
