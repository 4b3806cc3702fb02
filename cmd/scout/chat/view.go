package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		if msg.Role == "user" {
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")
		} else {
			agentStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(agentStyle.Render("🏔 scout") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	chatView := m.styles.Content.Render(m.viewport.View())

	if m.isLoading {
		note := m.loadingNote
		if note == "" {
			note = "Thinking..."
		}
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " " + note
	}

	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textarea.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" 🏔 scout ")
	version := m.styles.Badge.Render(m.version)

	var status string
	switch {
	case m.isLoading:
		status = m.styles.Warning.Render("● Working")
	case m.inputMode == InputModeClarification:
		status = m.styles.Info.Render("● Clarifying")
	default:
		status = m.styles.Success.Render("● Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		version,
		"  ",
		status,
	)

	var turns string
	if m.state != nil {
		turns = m.styles.Muted.Render(fmt.Sprintf(" turn %d/%d", m.state.TurnCount, m.maxTurns()))
	} else {
		turns = m.styles.Muted.Render(" new conversation")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		turns,
		m.styles.RenderDivider(m.width),
	)
}

func (m Model) renderFooter() string {
	help := m.styles.Muted.Render("Enter: send • Alt+Enter: newline • /help: commands • Ctrl+C: exit")
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}
