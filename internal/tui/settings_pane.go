package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/byewind1/gdl-agent/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget    string
	provider      string
	model         string
	maxAttempts   string
	selfReview    bool
	converterPath string
	outputDir     string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		visible:     false,
		saved:       false,

		// Initialize form field values from config
		saveTarget:    "global",
		provider:      cfg.Agent.Provider,
		model:         cfg.Providers[cfg.Agent.Provider].Model,
		maxAttempts:   strconv.Itoa(cfg.Agent.MaxAttempts),
		selfReview:    cfg.Agent.SelfReview,
		converterPath: cfg.Compiler.ConverterPath,
		outputDir:     cfg.Workspace.OutputDir,
	}

	m.buildForm()
	return m
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (XDG config dir)", "global"),
					huh.NewOption("Project (.gdl-agent/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("provider").
				Title("Provider").
				Value(&m.provider).
				Placeholder("anthropic"),

			huh.NewInput().
				Key("model").
				Title("Model").
				Value(&m.model).
				Placeholder("claude-sonnet-4-20250514"),

			huh.NewInput().
				Key("maxAttempts").
				Title("Attempt Budget").
				Value(&m.maxAttempts).
				Placeholder("5"),

			huh.NewConfirm().
				Key("selfReview").
				Title("Self-Review First Candidate").
				Value(&m.selfReview),
		).Title("Agent Settings"),

		huh.NewGroup(
			huh.NewInput().
				Key("converterPath").
				Title("LP_XMLConverter Path").
				Value(&m.converterPath).
				Placeholder("LP_XMLConverter"),

			huh.NewInput().
				Key("outputDir").
				Title("Output Directory").
				Value(&m.outputDir).
				Placeholder("output"),
		).Title("Compiler & Workspace"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	// Delegate to form
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	// Check if form is completed
	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
		}

		// Hide form after successful save
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() {
	m.config.Agent.Provider = m.provider
	if n, err := strconv.Atoi(m.maxAttempts); err == nil && n > 0 {
		m.config.Agent.MaxAttempts = n
	}
	m.config.Agent.SelfReview = m.selfReview

	if m.config.Providers == nil {
		m.config.Providers = make(map[string]config.ProviderConfig)
	}
	p := m.config.Providers[m.provider]
	p.Model = m.model
	m.config.Providers[m.provider] = p

	m.config.Compiler.ConverterPath = m.converterPath
	m.config.Workspace.OutputDir = m.outputDir
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string

	if m.saved && m.form.State == huh.StateCompleted {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Settings saved successfully!")
	} else if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	body := style.Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild the form to reset state when showing
	if v && m.form != nil {
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}
