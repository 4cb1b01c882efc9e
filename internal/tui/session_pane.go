package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/byewind1/gdl-agent/internal/events"
)

// SessionState tracks one generation session for display.
type SessionState struct {
	ID        string
	Label     string
	Status    string // "running", "succeeded", "failed"
	Lines     []string
	StartTime time.Time
	Duration  time.Duration
}

// SessionPaneModel renders the session list and a transcript viewport.
type SessionPaneModel struct {
	sessions    map[string]*SessionState
	order       []string // insertion order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewSessionPaneModel creates a new session pane model.
func NewSessionPaneModel() SessionPaneModel {
	vp := viewport.New(0, 0)
	return SessionPaneModel{
		sessions: make(map[string]*SessionState),
		viewport: vp,
	}
}

// Update handles messages for the session pane.
func (m SessionPaneModel) Update(msg tea.Msg) (SessionPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.SessionStartedEvent:
		if _, exists := m.sessions[msg.ID]; !exists {
			m.sessions[msg.ID] = &SessionState{
				ID:        msg.ID,
				Label:     sessionLabel(msg.Instruction),
				Status:    "running",
				Lines:     []string{fmt.Sprintf("Session started, budget %d attempts", msg.MaxAttempts)},
				StartTime: msg.Timestamp,
			}
			m.order = append(m.order, msg.ID)
			// Auto-select the first session
			if len(m.order) == 1 {
				m.selectedIdx = 0
			}
			m.refreshIfSelected(msg.ID)
		}

	case events.AttemptStartedEvent:
		m.appendLine(msg.ID, fmt.Sprintf("--- attempt %d ---", msg.Attempt))

	case events.GeneratedEvent:
		m.appendLine(msg.ID, fmt.Sprintf("candidate received: %d bytes, %d tokens", msg.Bytes, msg.Tokens))

	case events.SelfReviewEvent:
		if msg.Corrected {
			m.appendLine(msg.ID, fmt.Sprintf("self-review corrected the candidate (%d tokens)", msg.Tokens))
		} else {
			m.appendLine(msg.ID, fmt.Sprintf("self-review passed (%d tokens)", msg.Tokens))
		}

	case events.ValidationFailedEvent:
		lines := []string{"structural validation rejected the candidate:"}
		for _, d := range msg.Defects {
			lines = append(lines, "  - "+d)
		}
		m.appendLines(msg.ID, lines)

	case events.CompileStartedEvent:
		m.appendLine(msg.ID, "compiling...")

	case events.CompileFinishedEvent:
		line := fmt.Sprintf("compile %s in %v", msg.Status, msg.Duration.Round(time.Millisecond))
		if msg.Diagnostic != "" {
			line += ": " + msg.Diagnostic
		}
		m.appendLine(msg.ID, line)

	case events.SessionFinishedEvent:
		if s, exists := m.sessions[msg.ID]; exists {
			if msg.Outcome == "succeeded" {
				s.Status = "succeeded"
			} else {
				s.Status = "failed"
			}
			s.Duration = msg.Duration
			line := fmt.Sprintf("\n[%s after %d attempts in %v]", msg.Outcome, msg.Attempts, msg.Duration.Round(time.Millisecond))
			if msg.ArtifactPath != "" {
				line += "\nartifact: " + msg.ArtifactPath
			}
			if msg.Reason != "" {
				line += "\nreason: " + msg.Reason
			}
			s.Lines = append(s.Lines, line)
			m.refreshIfSelected(msg.ID)
		}
	}

	return m, cmd
}

// View renders the session pane.
func (m SessionPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	// Two columns: session list (left) and transcript viewport (right)
	listWidth := 25
	viewportWidth := m.width - listWidth - 4 // account for borders and padding

	listContent := m.renderSessionList(listWidth)
	viewportContent := m.viewport.View()

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listContent,
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(viewportContent),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderSessionList renders the session list column.
func (m SessionPaneModel) renderSessionList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Sessions")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, id := range m.order {
			s := m.sessions[id]
			icon := m.StatusIcon(s.Status)
			name := s.Label
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", icon, name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m SessionPaneModel) StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "succeeded":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// sessionLabel derives a short list label from the instruction text.
func sessionLabel(instruction string) string {
	label := strings.TrimSpace(instruction)
	if i := strings.IndexByte(label, '\n'); i >= 0 {
		label = label[:i]
	}
	if label == "" {
		label = "(untitled)"
	}
	return label
}

func (m *SessionPaneModel) appendLine(id, line string) {
	m.appendLines(id, []string{line})
}

func (m *SessionPaneModel) appendLines(id string, lines []string) {
	if s, exists := m.sessions[id]; exists {
		s.Lines = append(s.Lines, lines...)
		m.refreshIfSelected(id)
	}
}

func (m *SessionPaneModel) refreshIfSelected(id string) {
	if m.selectedID() == id {
		m.updateViewportContent()
	}
}

// selectedID returns the ID of the currently selected session.
func (m *SessionPaneModel) selectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected session's transcript.
func (m *SessionPaneModel) updateViewportContent() {
	id := m.selectedID()
	if id == "" {
		m.viewport.SetContent("Waiting for sessions...")
		return
	}

	s, exists := m.sessions[id]
	if !exists {
		m.viewport.SetContent("Waiting for sessions...")
		return
	}

	m.viewport.SetContent(strings.Join(s.Lines, "\n"))
	// Auto-scroll to bottom
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *SessionPaneModel) resizeViewport() {
	listWidth := 25
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4 // account for borders

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *SessionPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *SessionPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
