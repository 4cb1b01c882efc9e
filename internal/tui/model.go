package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneSessionList PaneID = iota
	PaneTranscript
	PaneBatch
)

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	sessionPane       SessionPaneModel
	batchPane         BatchPaneModel
	settingsPane      SettingsPaneModel
	focusedPane       PaneID
	eventSub          <-chan events.Event
	width             int
	height            int
	quitting          bool
	showSettings      bool
	config            *config.Config
	globalConfigPath  string
	projectConfigPath string
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(eventBus *events.EventBus, cfg *config.Config, globalPath, projectPath string) Model {
	return Model{
		sessionPane:       NewSessionPaneModel(),
		batchPane:         NewBatchPaneModel(),
		settingsPane:      NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:       PaneSessionList,
		eventSub:          eventBus.SubscribeAll(256),
		showSettings:      false,
		config:            cfg,
		globalConfigPath:  globalPath,
		projectConfigPath: projectPath,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			switch msg.String() {
			case KeySettings, "esc":
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)

				// Check if settings pane closed itself (after save)
				if !m.settingsPane.IsVisible() {
					m.showSettings = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		// Normal mode (settings not open)
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			// Cycle forward
			m.focusedPane = (m.focusedPane + 1) % 3
			m.updateFocusStates()

		case KeyShiftTab:
			// Cycle backward
			m.focusedPane = (m.focusedPane + 2) % 3 // +2 is equivalent to -1 mod 3
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneSessionList
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneTranscript
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneBatch
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			switch m.focusedPane {
			case PaneSessionList, PaneTranscript:
				var cmd tea.Cmd
				m.sessionPane, cmd = m.sessionPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneBatch:
				var cmd tea.Cmd
				m.batchPane, cmd = m.batchPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case events.SessionStartedEvent, events.AttemptStartedEvent, events.GeneratedEvent,
		events.SelfReviewEvent, events.ValidationFailedEvent, events.CompileStartedEvent,
		events.CompileFinishedEvent, events.SessionFinishedEvent:
		// Forward session lifecycle events to the session pane
		var cmd tea.Cmd
		m.sessionPane, cmd = m.sessionPane.Update(msg)
		cmds = append(cmds, cmd)
		// Also wait for next event
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.BatchProgressEvent:
		// Forward batch progress to the batch pane
		var cmd tea.Cmd
		m.batchPane, cmd = m.batchPane.Update(msg)
		cmds = append(cmds, cmd)
		// Also wait for next event
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// If settings panel is visible, render it as a full-screen overlay
	if m.showSettings {
		return m.settingsPane.View()
	}

	// Session pane left, batch progress right, help bar at the bottom
	leftPane := m.sessionPane.View()
	rightPane := m.batchPane.View()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpBar := HelpView()

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	m.sessionPane.SetSize(leftWidth, availableHeight)
	m.batchPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	// The session pane owns both the list and transcript focus targets
	m.sessionPane.SetFocused(m.focusedPane == PaneSessionList || m.focusedPane == PaneTranscript)
	m.batchPane.SetFocused(m.focusedPane == PaneBatch)
}
