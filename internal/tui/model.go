package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PageSage/pagesage/internal/assistant"
	"github.com/PageSage/pagesage/internal/session"
	"github.com/PageSage/pagesage/pkg/types"
)

// Command represents a slash command
type Command int

const (
	CmdNone Command = iota
	CmdNew
	CmdModel
	CmdUsage
	CmdHelp
	CmdQuit
	CmdUnknown
)

// routingAuto lets the decision engine pick the model for each query.
const routingAuto = "auto"

// chatMessage is one rendered entry in the transcript.
type chatMessage struct {
	Text      string
	FromUser  bool
	System    bool
	Model     string
	Timestamp time.Time
}

// answerMsg is sent when the assistant finishes a query
type answerMsg struct {
	answer *types.Answer
	err    error
}

// tickMsg drives the thinking spinner
type tickMsg time.Time

// Model is the bubbletea model for the chat panel
type Model struct {
	viewport  viewport.Model
	textarea  textarea.Model
	messages  []chatMessage
	assist    *assistant.Assistant
	sessionID string
	override  types.Model

	thinking bool
	err      error
	width    int
	height   int
	ready    bool
	quitting bool

	autocomplete  *Autocomplete
	responseTime  time.Duration
	responseStart time.Time
	usage         types.UsageRecord
	quota         int
	lastQuery     string
	tickCount     int
}

// New creates a new chat panel bound to an assistant
func New(a *assistant.Assistant) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about anything... (Enter to send)"
	ta.Focus()
	ta.CharLimit = 4096
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(true)

	return &Model{
		textarea:     ta,
		assist:       a,
		sessionID:    session.NewSessionID(),
		messages:     []chatMessage{},
		autocomplete: NewAutocomplete(),
		usage:        a.Usage(),
		quota:        a.Quota(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyCtrlL:
			m.startNewConversation()
			return m, nil

		case tea.KeyCtrlR:
			if !m.thinking && m.lastQuery != "" {
				return m.handleInput(m.lastQuery)
			}
			return m, nil

		case tea.KeyTab:
			if m.autocomplete.IsActive() {
				selected := m.autocomplete.Selected()
				m.textarea.SetValue(selected)
				m.textarea.CursorEnd()
				m.autocomplete.Reset()
				return m, nil
			}

		case tea.KeyUp:
			if m.autocomplete.IsActive() {
				m.autocomplete.Prev()
				return m, nil
			}

		case tea.KeyDown:
			if m.autocomplete.IsActive() {
				m.autocomplete.Next()
				return m, nil
			}

		case tea.KeyEsc:
			if m.autocomplete.IsActive() {
				m.autocomplete.Reset()
				return m, nil
			}

		case tea.KeyEnter:
			if m.autocomplete.IsActive() {
				selected := m.autocomplete.Selected()
				m.textarea.SetValue(selected + " ")
				m.textarea.CursorEnd()
				m.autocomplete.Reset()
				return m, nil
			}

			// Alt+Enter inserts a newline via the textarea
			if msg.Alt {
				break
			}
			if !m.thinking {
				text := strings.TrimSpace(m.textarea.Value())
				if text != "" {
					m.textarea.Reset()
					m.autocomplete.Reset()
					return m.handleInput(text)
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		inputHeight := 5
		statusHeight := 2 // quota bar + help line
		chatHeight := m.height - headerHeight - inputHeight - statusHeight - 2

		if !m.ready {
			m.viewport = viewport.New(m.width-2, chatHeight)
			m.viewport.SetContent(m.renderMessages())
			m.ready = true
		} else {
			m.viewport.Width = m.width - 2
			m.viewport.Height = chatHeight
		}

		m.textarea.SetWidth(m.width - 4)
		return m, nil

	case answerMsg:
		m.thinking = false
		m.responseTime = time.Since(m.responseStart)
		m.usage = m.assist.Usage()

		switch {
		case errors.Is(msg.err, assistant.ErrQuotaExceeded):
			m.addSystemMessage("Free query limit reached. Run `pagesage reset` to start a new cycle.")
		case errors.Is(msg.err, assistant.ErrRateLimited):
			m.addSystemMessage("Slow down a little, then try again.")
		case msg.err != nil:
			m.err = msg.err
		default:
			m.err = nil
			m.messages = append(m.messages, chatMessage{
				Text:      msg.answer.Text,
				Model:     string(msg.answer.Model),
				Timestamp: time.Now(),
			})
		}

		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case tickMsg:
		m.tickCount++
		if m.thinking {
			m.viewport.SetContent(m.renderMessages())
		}
		return m, m.tick()
	}

	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	m.autocomplete.Update(m.textarea.Value())

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleInput processes user input (message or command)
func (m Model) handleInput(text string) (tea.Model, tea.Cmd) {
	if isCommand(text) {
		cmd, arg := parseCommand(text)
		return m.handleCommand(cmd, arg)
	}

	if m.usage.Exceeded {
		m.addSystemMessage("Free query limit reached. Run `pagesage reset` to start a new cycle.")
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil
	}

	m.lastQuery = text
	m.messages = append(m.messages, chatMessage{
		Text:      text,
		FromUser:  true,
		Timestamp: time.Now(),
	})
	m.thinking = true
	m.err = nil
	m.responseStart = time.Now()
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()

	return m, m.ask(text)
}

// ask runs the query against the assistant off the UI goroutine
func (m Model) ask(text string) tea.Cmd {
	assist := m.assist
	sessionID := m.sessionID
	override := m.override
	return func() tea.Msg {
		answer, err := assist.Query(context.Background(), sessionID, text, nil, override)
		return answerMsg{answer: answer, err: err}
	}
}

// handleCommand processes slash commands
func (m Model) handleCommand(cmd Command, arg string) (tea.Model, tea.Cmd) {
	switch cmd {
	case CmdNew:
		m.startNewConversation()
		return m, nil

	case CmdModel:
		if arg == "" {
			msg := fmt.Sprintf("Routing mode: %s\nAvailable: %s", m.routingMode(), strings.Join(routingModes(), ", "))
			m.addSystemMessage(msg)
		} else if mode, ok := parseRoutingMode(arg); ok {
			m.override = mode
			m.addSystemMessage(fmt.Sprintf("Routing set to: %s", m.routingMode()))
		} else {
			m.addSystemMessage(fmt.Sprintf("Unknown mode: %s. Use /model to see available modes.", arg))
		}

	case CmdUsage:
		stats := m.assist.TokenStats()
		quota := fmt.Sprintf("Quota: %d/%d used, %d remaining", m.usage.CurrentUsage, m.quota, m.usage.Remaining)
		m.addSystemMessage(quota + "\n" + stats.String())

	case CmdHelp:
		m.addSystemMessage(helpText())

	case CmdQuit:
		m.quitting = true
		return m, tea.Quit

	case CmdUnknown:
		m.addSystemMessage("Unknown command. Type /help for available commands.")
	}

	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
	return m, nil
}

// startNewConversation clears history and rotates the session id
func (m *Model) startNewConversation() {
	m.messages = []chatMessage{}
	m.sessionID = session.NewSessionID()
	m.lastQuery = ""
	m.err = nil
	m.addSystemMessage("Started new conversation")
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// addSystemMessage adds a system message to the chat
func (m *Model) addSystemMessage(text string) {
	m.messages = append(m.messages, chatMessage{
		Text:      text,
		System:    true,
		Timestamp: time.Now(),
	})
}

// routingMode names the active override, or "auto"
func (m Model) routingMode() string {
	if m.override == "" {
		return routingAuto
	}
	return string(m.override)
}

func routingModes() []string {
	return []string{routingAuto, string(types.ModelAnalytical), string(types.ModelRealtime), string(types.ModelHybrid)}
}

// parseRoutingMode maps a /model argument to an override. "auto" clears it.
func parseRoutingMode(arg string) (types.Model, bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case routingAuto:
		return "", true
	case string(types.ModelAnalytical):
		return types.ModelAnalytical, true
	case string(types.ModelRealtime):
		return types.ModelRealtime, true
	case string(types.ModelHybrid):
		return types.ModelHybrid, true
	default:
		return "", false
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	header := renderHeader(m.routingMode(), m.responseTime, m.width)
	b.WriteString(header)
	b.WriteString("\n")

	chatContent := chatBorderStyle.Width(m.width - 2).Render(m.viewport.View())
	b.WriteString(chatContent)
	b.WriteString("\n")

	quotaBar := formatQuotaBar(m.usage.CurrentUsage, m.quota, m.width-4)
	b.WriteString(quotaBar)
	b.WriteString("\n")

	if m.autocomplete.IsActive() {
		popup := m.autocomplete.View(m.width - 4)
		b.WriteString(popup)
		b.WriteString("\n")
	}

	inputBox := inputBorderStyle.Width(m.width - 2).Render(m.textarea.View())
	b.WriteString(inputBox)
	b.WriteString("\n")

	b.WriteString(formatKeyboardShortcuts())

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(formatError(m.err.Error()))
	}

	return b.String()
}

// renderMessages renders the transcript for the viewport
func (m Model) renderMessages() string {
	if len(m.messages) == 0 && !m.thinking {
		return systemStyle.Render("Welcome to PageSage. Ask anything, or reference the page you are reading.\n\nCommands: /new, /model, /usage, /help, /quit")
	}

	var lines []string
	for _, msg := range m.messages {
		formatted := m.formatChatMessage(msg)
		wrapped := wrapText(formatted, m.viewport.Width-4)
		lines = append(lines, wrapped, "")
	}

	if m.thinking {
		lines = append(lines, formatThinking(m.tickCount))
	}

	return strings.Join(lines, "\n")
}

// formatChatMessage formats a single transcript entry with timestamp
func (m Model) formatChatMessage(msg chatMessage) string {
	if msg.System {
		return formatSystemMessage(msg.Text)
	}

	var content string
	if msg.FromUser {
		content = formatUserMessage(msg.Text)
	} else {
		content = formatAssistantMessage(msg.Text, msg.Model, m.viewport.Width-10)
	}

	if !msg.Timestamp.IsZero() {
		content = content + "  " + formatTimestamp(msg.Timestamp)
	}

	return content
}

// parseCommand parses a slash command and its argument
func parseCommand(input string) (Command, string) {
	input = strings.TrimSpace(input)
	if input == "" || !strings.HasPrefix(input, "/") {
		return CmdNone, ""
	}

	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/new":
		return CmdNew, arg
	case "/model":
		return CmdModel, arg
	case "/usage":
		return CmdUsage, arg
	case "/help":
		return CmdHelp, arg
	case "/quit", "/exit", "/q":
		return CmdQuit, arg
	default:
		return CmdUnknown, arg
	}
}

// isCommand checks if input is a slash command
func isCommand(input string) bool {
	return strings.HasPrefix(input, "/")
}

// helpText returns the help message
func helpText() string {
	return `Available commands:
  /new         Start a new conversation (clears history)
  /model       Show the routing mode and available modes
  /model NAME  Force every query to one model (auto to clear)
  /usage       Show quota and token usage statistics
  /help        Show this help message
  /quit        Exit the chat

Keyboard shortcuts:
  Enter        Send message
  Alt+Enter    New line
  Ctrl+L       Clear conversation
  Ctrl+R       Retry last query
  Ctrl+C       Quit
  Tab          Select autocomplete
  ↑/↓          Navigate autocomplete`
}

// wrapText wraps text to fit within the given width
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 80
	}

	var result strings.Builder
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		currentLine := words[0]
		for _, word := range words[1:] {
			if lipgloss.Width(currentLine+" "+word) <= width {
				currentLine += " " + word
			} else {
				result.WriteString(currentLine)
				result.WriteString("\n")
				currentLine = word
			}
		}
		result.WriteString(currentLine)
	}

	return result.String()
}

// Run starts the chat panel
func Run(a *assistant.Assistant) error {
	p := tea.NewProgram(New(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
