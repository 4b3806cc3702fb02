// Package chat provides the interactive TUI for scout, split across:
//   - model.go: types, Init, Update loop
//   - process.go: turn processing against the pipeline
//   - commands.go: /command handling
//   - view.go: rendering
package chat

import (
	"context"
	"time"

	"trailscout/cmd/scout/ui"
	"trailscout/internal/config"
	"trailscout/internal/core"
	"trailscout/internal/pipeline"
	"trailscout/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// InputMode represents the current input handling state.
type InputMode int

const (
	InputModeNormal        InputMode = iota // Process as chat input
	InputModeClarification                  // Awaiting a clarification answer
)

const (
	defaultPlaceholder       = "Ask for activities anywhere in the world... (Enter to send, Ctrl+C to exit)"
	clarificationPlaceholder = `Answer the questions, or say "proceed" to continue with general options...`

	turnTimeout = 5 * time.Minute
)

// turner runs conversation turns. *pipeline.Pipeline implements it; tests
// substitute a fake.
type turner interface {
	Recommend(ctx context.Context, request string, state *core.ConversationState, bypassClarification bool) (*core.ConversationalResponse, error)
	HandleFeedback(ctx context.Context, feedback string, state *core.ConversationState) (*core.ConversationalResponse, error)
}

// Message is one chat transcript entry.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
	Time    time.Time
}

// Messages for tea updates.
type (
	responseMsg *core.ConversationalResponse
	errorMsg    error
)

// Options wires the chat interface to the rest of the application.
type Options struct {
	Config    *config.Config
	Pipeline  *pipeline.Pipeline
	Store     *store.SessionStore // nil disables /sessions
	Workspace string
	Version   string
}

// Model is the bubbletea model for the chat interface.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	history     []Message
	inputMode   InputMode
	isLoading   bool
	loadingNote string
	err         error
	width       int
	height      int
	ready       bool
	done        bool

	turns     turner
	state     *core.ConversationState
	store     *store.SessionStore
	cfg       *config.Config
	workspace string
	version   string
}

// New builds the chat model. The conversation state is created lazily on
// the first submitted request.
func New(opts Options) Model {
	styles := ui.DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = defaultPlaceholder
	ta.Prompt = "│ "
	ta.CharLimit = 2048
	ta.SetWidth(80)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	renderer := newMarkdownRenderer(styles.Theme.IsDark, 80)

	m := Model{
		textarea:  ta,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		inputMode: InputModeNormal,
		turns:     opts.Pipeline,
		store:     opts.Store,
		cfg:       opts.Config,
		workspace: opts.Workspace,
		version:   opts.Version,
	}
	m.history = append(m.history, Message{
		Role:    "assistant",
		Content: welcomeMessage,
		Time:    time.Now(),
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			// Alt+Enter and pasted newlines stay in the textarea.
			if msg.Alt || msg.Paste {
				break
			}
			if m.isLoading {
				return m, nil
			}
			return m.handleSubmit()
		}

		if !m.isLoading {
			m.textarea, taCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 2
		inputHeight := 4

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}
		m.textarea.SetWidth(msg.Width - 4)

		if m.renderer != nil {
			m.renderer = newMarkdownRenderer(m.styles.Theme.IsDark, msg.Width-8)
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		return m.handleResponse((*core.ConversationalResponse)(msg))

	case errorMsg:
		return m.handleTurnError(error(msg))
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(taCmd, vpCmd, spCmd)
}

func (m *Model) appendUser(content string) {
	m.history = append(m.history, Message{Role: "user", Content: content, Time: time.Now()})
}

func (m *Model) appendAgent(content string) {
	m.history = append(m.history, Message{Role: "assistant", Content: content, Time: time.Now()})
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) maxTurns() int {
	if m.cfg != nil && m.cfg.Conversation.MaxTurns > 0 {
		return m.cfg.Conversation.MaxTurns
	}
	return 5
}

// newMarkdownRenderer builds the glamour renderer for the detected
// theme. A nil renderer falls back to plain text in safeRenderMarkdown.
func newMarkdownRenderer(dark bool, wrap int) *glamour.TermRenderer {
	if wrap < 20 {
		wrap = 20
	}
	style := glamour.WithStylePath("light")
	if dark {
		style = glamour.WithAutoStyle()
	}
	r, _ := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	return r
}

// Run starts the interactive chat and blocks until the user leaves.
func Run(opts Options) error {
	p := tea.NewProgram(
		New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
