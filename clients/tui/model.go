package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/tabchat/internal/lifecycle"
	"github.com/dohr-michael/tabchat/internal/timeline"
	"github.com/dohr-michael/tabchat/internal/upload"
)

// Conversation is the session core the view drives.
type Conversation interface {
	StartSession(ctx context.Context) error
	EndSession(ctx context.Context) error
	SubmitQuery(ctx context.Context, text string) error
	UploadFiles(ctx context.Context, sel *upload.Selection) error
	Timeline() []timeline.Message
	OnAppend(l timeline.Listener)
	State() lifecycle.State
	Teardown() <-chan struct{}
}

// timelineMsg tells the view the timeline grew.
type timelineMsg struct{}

// opDoneMsg reports the end of a core operation. hostErr is set for failures
// that never reached the core, such as an unreadable upload pattern.
type opDoneMsg struct {
	op      string
	hostErr error
}

// Model is the root bubbletea model. It keeps no conversation state of its
// own: every render reads a fresh timeline snapshot.
type Model struct {
	ctx  context.Context
	conv Conversation

	input    textinput.Model
	viewport viewport.Model
	md       *markdownRenderer

	messages  []timeline.Message
	status    string
	statusErr bool
	inFlight  int
	width     int
	height    int
}

// NewModel creates the view for conv.
func NewModel(ctx context.Context, conv Conversation) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "Ask a question about your data, or /help"
	ti.CharLimit = 4000
	ti.Width = 80
	ti.Focus()

	return Model{
		ctx:      ctx,
		conv:     conv,
		input:    ti,
		viewport: viewport.New(80, 20),
		md:       &markdownRenderer{},
		inFlight: 1,
	}
}

// Init starts the session as soon as the view is shown.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run("start", m.conv.StartSession))
}

// Update processes all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1) // input(1) + statusbar(1)
		m.refresh()
		return m, nil

	case timelineMsg:
		m.messages = m.conv.Timeline()
		m.refresh()
		return m, nil

	case opDoneMsg:
		m.inFlight--
		if msg.hostErr != nil {
			m.setStatus(fmt.Sprintf("%s: %v", msg.op, msg.hostErr), true)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.Reset()
	m.setStatus("", false)

	c, ok := parseCommand(line)
	if !ok {
		m.inFlight++
		return m, m.run("query", func(ctx context.Context) error {
			return m.conv.SubmitQuery(ctx, line)
		})
	}

	if err := c.validate(); err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}

	switch c.name {
	case "/quit":
		return m, tea.Quit
	case "/help":
		m.setStatus(helpText, false)
		return m, nil
	case "/start":
		m.inFlight++
		return m, m.run("start", m.conv.StartSession)
	case "/end":
		m.inFlight++
		return m, m.run("end", m.conv.EndSession)
	default: // "/upload"
		m.inFlight++
		return m, m.uploadCmd(c.args)
	}
}

// run executes op off the update loop. Core failures are already on the
// timeline, so only completion is reported back.
func (m Model) run(name string, op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		op(ctx)
		return opDoneMsg{op: name}
	}
}

func (m Model) uploadCmd(patterns []string) tea.Cmd {
	ctx, conv := m.ctx, m.conv
	return func() tea.Msg {
		sel, err := upload.LoadSelection(patterns...)
		if err != nil {
			return opDoneMsg{op: "upload", hostErr: err}
		}
		conv.UploadFiles(ctx, sel)
		return opDoneMsg{op: "upload"}
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTimeline())
	m.viewport.GotoBottom()
}

func (m Model) renderTimeline() string {
	width := max(m.viewport.Width-2, 20)
	blocks := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) renderMessage(msg timeline.Message, width int) string {
	label := msg.Kind.Label() + ":"
	switch msg.Kind {
	case timeline.User:
		return UserStyle.Render(label) + " " + msg.Text
	case timeline.AI:
		return AIStyle.Render(label) + "\n" + m.md.Render(msg.Text, width)
	default:
		return SystemStyle.Render(label) + " " + MutedStyle.Render(msg.Text)
	}
}

// View renders the layout: TIMELINE | INPUT | STATUS.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.input.View(),
		m.statusLine(),
	)
}

func (m Model) statusLine() string {
	left := "session: " + m.conv.State().String()
	if m.inFlight > 0 {
		left += " · working"
	}
	line := left
	if m.status != "" {
		status := m.status
		if m.statusErr {
			status = ErrorStyle.Render(status)
		}
		line += " | " + status
	}
	style := StatusBarStyle
	if m.width > 0 {
		style = style.Width(m.width)
	}
	return style.Render(line)
}
