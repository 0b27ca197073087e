package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/climate-alerts/internal/keys"
	"github.com/nhle/climate-alerts/internal/model"
	"github.com/nhle/climate-alerts/internal/theme"
)

// probeTimeout bounds a test fetch from the weather provider.
const probeTimeout = 15 * time.Second

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeView           ConfigMode = iota // Current weather settings
	ModeForm                             // Editing
	ModeValidating                       // Test fetch in flight
	ModeValidateResult                   // Test fetch result
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// SavedMsg reports that new weather settings were written. They apply on
// the next start.
type SavedMsg struct {
	Weather model.WeatherConfig
}

// ValidateResultMsg carries the result of a test fetch.
type ValidateResultMsg struct {
	Reading model.Weather
	Err     error
}

type savedInternalMsg struct {
	weather model.WeatherConfig
	err     error
}

// Credentials reads and stores the weather API key.
type Credentials interface {
	Lookup(key string) (string, error)
	Set(key, value string) error
}

// ProbeFunc fetches one reading with the given settings.
type ProbeFunc func(ctx context.Context, cfg model.WeatherConfig, apiKey string) (model.Weather, error)

// Deps wires the settings view. Config is the loaded configuration and is
// updated in place on save.
type Deps struct {
	Config      *model.AppConfig
	Path        string
	Credentials Credentials
	CredKey     string
	Save        func(path string, cfg *model.AppConfig) error
	Probe       ProbeFunc
}

type formFields struct {
	provider string
	location string
	lat      string
	lon      string
	interval string
	apiKey   string
}

// Model is the Bubble Tea model for the weather source settings.
type Model struct {
	mode ConfigMode
	deps Deps

	form *huh.Form

	// huh binds to these; a pointer so copies of Model share them
	fields *formFields

	validating  bool
	validResult model.Weather
	validError  error
	spinner     spinner.Model

	// Status message for transient feedback
	statusMsg string
	keyState  string

	keys          *keys.KeyMap
	width, height int
}

// New creates the settings view.
func New(d Deps, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeView,
		deps:    d,
		fields:  &formFields{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Available reports whether the view has a configuration to edit.
func (m Model) Available() bool {
	return m.deps.Config != nil
}

// Mode returns the current mode.
func (m Model) Mode() ConfigMode { return m.mode }

// Open resets the view to the settings summary.
func (m *Model) Open() {
	m.mode = ModeView
	m.statusMsg = ""
	m.validError = nil
	m.keyState = m.lookupKeyState()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validating = false
		m.validResult = msg.Reading
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case savedInternalMsg:
		m.validating = false
		m.mode = ModeView
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.deps.Config.Weather = msg.weather
		m.keyState = m.lookupKeyState()
		m.statusMsg = "Settings saved; restart to apply"
		return m, func() tea.Msg { return SavedMsg{Weather: msg.weather} }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeView:
		return m.handleViewKeys(msg)
	case ModeForm:
		return m.updateForm(msg)
	case ModeValidateResult:
		return m.handleValidateResultKeys(msg)
	case ModeValidating:
		if msg.String() == "esc" {
			m.mode = ModeView
			m.validating = false
			return m, nil
		}
	}
	return m, nil
}

func (m Model) handleViewKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ConfigDoneMsg{} }

	case msg.String() == "e":
		if !m.Available() {
			return m, nil
		}
		m.loadFormFields()
		m.mode = ModeForm
		m.form = m.buildForm()
		return m, m.form.Init()

	case msg.String() == "enter", msg.String() == "t":
		if !m.Available() {
			return m, nil
		}
		return m.startValidation(m.deps.Config.Weather, "")
	}
	return m, nil
}

func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = ModeView
		m.validError = nil
		return m, nil
	case "r":
		if m.validError != nil {
			return m.startValidation(m.deps.Config.Weather, "")
		}
	}
	return m, nil
}

func (m Model) startValidation(wc model.WeatherConfig, apiKey string) (Model, tea.Cmd) {
	m.mode = ModeValidating
	m.validating = true
	return m, tea.Batch(m.spinner.Tick, m.validate(wc, apiKey))
}

// --- Form ---

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Proveedor").
				Options(
					huh.NewOption("Simulado (sin conexión)", "simulated"),
					huh.NewOption("Open-Meteo", "open-meteo"),
				).
				Value(&m.fields.provider),
			huh.NewInput().
				Title("Ubicación").
				Placeholder("Huancavelica Centro").
				Value(&m.fields.location),
			huh.NewInput().
				Title("Latitud").
				Value(&m.fields.lat).
				Validate(validateCoordinate("latitud", 90)),
			huh.NewInput().
				Title("Longitud").
				Value(&m.fields.lon).
				Validate(validateCoordinate("longitud", 180)),
			huh.NewInput().
				Title("Intervalo (segundos)").
				Value(&m.fields.interval).
				Validate(validateInterval),
			huh.NewInput().
				Title("API key").
				Description("Opcional. Se guarda en el llavero del sistema.").
				EchoMode(huh.EchoModePassword).
				Value(&m.fields.apiKey),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		wc, err := m.weatherFromForm()
		if err != nil {
			m.statusMsg = err.Error()
			m.mode = ModeView
			return m, nil
		}
		m.mode = ModeValidating
		m.validating = true
		return m, tea.Batch(m.spinner.Tick, m.validateAndSave(wc, strings.TrimSpace(m.fields.apiKey)))
	case huh.StateAborted:
		m.mode = ModeView
		return m, nil
	}
	return m, cmd
}

func (m *Model) loadFormFields() {
	w := m.deps.Config.Weather
	m.fields.provider = w.Provider
	if m.fields.provider == "" {
		m.fields.provider = "simulated"
	}
	m.fields.location = w.Location
	m.fields.lat = strconv.FormatFloat(w.Latitude, 'f', -1, 64)
	m.fields.lon = strconv.FormatFloat(w.Longitude, 'f', -1, 64)
	m.fields.interval = strconv.Itoa(w.PollIntervalSec)
	m.fields.apiKey = "" // never pre-filled
}

// weatherFromForm merges the form fields into the current settings.
func (m Model) weatherFromForm() (model.WeatherConfig, error) {
	wc := m.deps.Config.Weather
	wc.Provider = m.fields.provider
	wc.Location = strings.TrimSpace(m.fields.location)

	var err error
	if wc.Latitude, err = strconv.ParseFloat(strings.TrimSpace(m.fields.lat), 64); err != nil {
		return wc, fmt.Errorf("latitud inválida: %w", err)
	}
	if wc.Longitude, err = strconv.ParseFloat(strings.TrimSpace(m.fields.lon), 64); err != nil {
		return wc, fmt.Errorf("longitud inválida: %w", err)
	}
	if wc.PollIntervalSec, err = strconv.Atoi(strings.TrimSpace(m.fields.interval)); err != nil {
		return wc, fmt.Errorf("intervalo inválido: %w", err)
	}
	return wc, nil
}

// --- Commands ---

// validate test-fetches with wc. An empty apiKey uses the stored one.
func (m Model) validate(wc model.WeatherConfig, apiKey string) tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		if apiKey == "" && d.Credentials != nil {
			apiKey, _ = d.Credentials.Lookup(d.CredKey)
		}
		reading, err := d.Probe(ctx, wc, apiKey)
		return ValidateResultMsg{Reading: reading, Err: err}
	}
}

// validateAndSave test-fetches with wc, then stores the key and writes
// the config file. The loaded config is updated when the result arrives.
func (m Model) validateAndSave(wc model.WeatherConfig, apiKey string) tea.Cmd {
	d := m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		probeKey := apiKey
		if probeKey == "" && d.Credentials != nil {
			probeKey, _ = d.Credentials.Lookup(d.CredKey)
		}
		reading, err := d.Probe(ctx, wc, probeKey)
		if err != nil {
			return ValidateResultMsg{Reading: reading, Err: err}
		}

		if apiKey != "" && d.Credentials != nil {
			if err := d.Credentials.Set(d.CredKey, apiKey); err != nil {
				return savedInternalMsg{err: fmt.Errorf("saving credential: %w", err)}
			}
		}

		next := *d.Config
		next.Weather = wc
		if err := next.Validate(); err != nil {
			return savedInternalMsg{err: err}
		}
		if err := d.Save(d.Path, &next); err != nil {
			return savedInternalMsg{err: err}
		}
		return savedInternalMsg{weather: wc}
	}
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeForm:
		return m.viewForm()
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return m.viewSettings()
	}
}

func (m Model) frame(content string) string {
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewSettings() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Fuente meteorológica"))
	b.WriteString("\n\n")

	if !m.Available() {
		b.WriteString(theme.DimmedStyle.Render("No configuration loaded."))
		return m.frame(b.String())
	}

	w := m.deps.Config.Weather
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(12)
	row := func(k, v string) {
		b.WriteString(label.Render(k) + v + "\n")
	}
	row("Proveedor", w.Provider)
	row("Ubicación", w.Location)
	row("Posición", fmt.Sprintf("%.4f, %.4f", w.Latitude, w.Longitude))
	row("Intervalo", fmt.Sprintf("%ds", w.PollIntervalSec))
	if w.BaseURL != "" {
		row("URL", w.BaseURL)
	}
	row("API key", m.keyState)

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("e edit | enter test | esc back"))
	return m.frame(b.String())
}

func (m Model) lookupKeyState() string {
	if m.deps.Credentials == nil {
		return "-"
	}
	v, err := m.deps.Credentials.Lookup(m.deps.CredKey)
	switch {
	case err != nil:
		return "keyring unavailable"
	case v == "":
		return "not set"
	default:
		return "stored"
	}
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}
	return m.frame(m.form.View())
}

func (m Model) viewValidating() string {
	return m.frame(fmt.Sprintf(
		"%s Consultando el clima...\n\nPress esc to cancel.",
		m.spinner.View(),
	))
}

func (m Model) viewValidateResult() string {
	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			theme.HelpStyle.Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		r := m.validResult
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("%s: %.1f °C, %.0f%% humedad, viento %.1f km/h, lluvia %.1f mm",
				r.Location, r.Temperature, r.Humidity, r.WindSpeed, r.Rainfall) + "\n\n" +
			theme.HelpStyle.Render("enter/esc back")
	}
	return m.frame(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateCoordinate(name string, limit float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("%s debe ser un número", name)
		}
		if v < -limit || v > limit {
			return fmt.Errorf("%s fuera de rango", name)
		}
		return nil
	}
}

func validateInterval(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return fmt.Errorf("debe ser un entero positivo")
	}
	return nil
}
