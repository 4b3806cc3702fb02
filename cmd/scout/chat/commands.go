package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const welcomeMessage = `**Welcome to scout!**

Ask me for activity recommendations anywhere in the world. I'll search
the web, check the weather, and put together suggestions you can act on.

Try something like:

- *I want to go for a run in Vienna tomorrow morning*
- *Find me hiking trails near Salzburg for this weekend*
- *Where can I go cycling around Lake Garda?*
- *Indoor climbing options in Berlin for a rainy day*

Type **/help** for commands, or **quit** to leave.`

const helpMessage = `**Commands**

| Command | Description |
|---------|-------------|
| /help | Show this help |
| /clear | Clear the conversation and start over |
| /sessions | List recent recorded sessions |
| /quit | Exit scout |

You can also leave by typing **quit**, **exit**, **bye**, **goodbye** or **stop**.
Once you have recommendations, answer with feedback to refine them, or say
something like *"perfect, thanks"* when you're done.`

// handleCommand processes slash commands locally, without a pipeline turn.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()

	cmd := strings.ToLower(strings.Fields(input)[0])
	switch cmd {
	case "/help":
		m.appendAgent(helpMessage)

	case "/clear":
		m.history = []Message{{Role: "assistant", Content: welcomeMessage, Time: m.history[0].Time}}
		m.state = nil
		m.inputMode = InputModeNormal
		m.textarea.Placeholder = defaultPlaceholder
		m.err = nil

	case "/sessions":
		m.appendAgent(m.sessionListing())

	case "/quit", "/exit", "/q":
		m.appendAgent(goodbyeMessage)
		m.done = true
		m.refreshViewport()
		return m, tea.Quit

	default:
		m.appendAgent(fmt.Sprintf("Unknown command: `%s`. Type /help for available commands.", cmd))
	}

	m.refreshViewport()
	return m, nil
}

func (m Model) sessionListing() string {
	if m.store == nil {
		return "Session history is not available."
	}
	sessions, err := m.store.RecentSessions(10)
	if err != nil {
		return fmt.Sprintf("Could not read session history: %v", err)
	}
	if len(sessions) == 0 {
		return "No recorded sessions yet."
	}

	var b strings.Builder
	b.WriteString("**Recent sessions**\n\n")
	b.WriteString("| Started | Turns | Request |\n")
	b.WriteString("|---------|-------|---------|\n")
	for _, s := range sessions {
		request := s.OriginalRequest
		if len(request) > 60 {
			request = request[:57] + "..."
		}
		fmt.Fprintf(&b, "| %s | %d | %s |\n", s.CreatedAt.Format("2006-01-02 15:04"), s.Turns, request)
	}
	return b.String()
}
