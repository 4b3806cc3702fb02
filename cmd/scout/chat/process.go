package chat

import (
	"context"
	"errors"
	"strings"

	"trailscout/internal/articulation"
	"trailscout/internal/conversation"
	"trailscout/internal/core"
	"trailscout/internal/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	goodbyeMessage = "Goodbye! Have a great time with your activities!"
	limitMessage   = "We've reached the conversation limit. I hope some of these recommendations are helpful!"

	firstTurnNote = "Searching the web and checking weather conditions..."
	feedbackNote  = "Let me understand your feedback..."
)

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	if conversation.IsQuitWord(input) {
		m.textarea.Reset()
		m.appendUser(input)
		m.appendAgent(goodbyeMessage)
		m.done = true
		m.refreshViewport()
		return m, tea.Quit
	}

	// Keyword satisfaction closes the session without an LLM round trip.
	// Only once recommendations exist; "thanks" as an opener is a request.
	if m.state != nil && m.state.TurnCount > 0 && conversation.SoundsSatisfied(input) {
		m.textarea.Reset()
		m.appendUser(input)
		m.appendAgent(pipeline.SatisfiedMessage)
		m.done = true
		m.refreshViewport()
		return m, tea.Quit
	}

	if m.state == nil {
		m.state = conversation.NewState(input, m.maxTurns())
	}

	firstTurn := m.state.TurnCount == 0

	m.textarea.Reset()
	m.appendUser(input)
	m.isLoading = true
	m.err = nil
	if firstTurn {
		m.loadingNote = firstTurnNote
	} else {
		m.loadingNote = feedbackNote
	}
	m.refreshViewport()

	return m, tea.Batch(m.spinner.Tick, m.processTurn(input, firstTurn))
}

// processTurn runs one pipeline turn in the background. Everything after
// the first turn goes through feedback classification, clarification
// answers included: the classifier routes them as refinements and re-runs
// the search with the clarification gate bypassed.
func (m Model) processTurn(input string, firstTurn bool) tea.Cmd {
	turns := m.turns
	state := m.state

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()

		var (
			resp *core.ConversationalResponse
			err  error
		)
		if firstTurn {
			resp, err = turns.Recommend(ctx, input, state, false)
		} else {
			resp, err = turns.HandleFeedback(ctx, input, state)
		}
		if err != nil {
			return errorMsg(err)
		}
		return responseMsg(resp)
	}
}

func (m Model) handleResponse(resp *core.ConversationalResponse) (tea.Model, tea.Cmd) {
	m.isLoading = false
	m.loadingNote = ""
	if resp == nil {
		m.refreshViewport()
		return m, nil
	}

	m.state.TurnCount++
	m.appendAgent(articulation.RenderResponse(*resp))

	if resp.NeedsClarification {
		m.inputMode = InputModeClarification
		m.textarea.Placeholder = clarificationPlaceholder
	} else {
		m.inputMode = InputModeNormal
		m.textarea.Placeholder = defaultPlaceholder
	}
	m.refreshViewport()

	if resp.ConversationMessage == pipeline.SatisfiedMessage {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// handleTurnError maps pipeline errors to chat messages. Failed turns do
// not advance the turn count, so the user can retry within the budget.
func (m Model) handleTurnError(err error) (tea.Model, tea.Cmd) {
	m.isLoading = false
	m.loadingNote = ""

	switch {
	case errors.Is(err, core.ErrTurnBudget):
		m.appendAgent(limitMessage)
		m.done = true
		m.refreshViewport()
		return m, tea.Quit

	case errors.Is(err, core.ErrRequestTooShort):
		m.appendAgent("Please provide a more detailed activity request.")

	default:
		m.err = err
		m.appendAgent("Sorry, I encountered an error: " + err.Error() + "\n\nPlease try again with a different request.")
	}
	m.refreshViewport()
	return m, nil
}
