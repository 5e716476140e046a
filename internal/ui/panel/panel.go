// Package panel is the chat window of the widget: the scrolling history and
// the input line. The draft text lives here and nowhere else.
package panel

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
)

// Cursor is shown in the pending reply bubble while a reply loads.
const Cursor = "▮"

const (
	defaultWidth  = 60
	defaultHeight = 12
	// rows used by title bar, menu bar, input line and borders
	chromeRows = 6
)

var (
	windowStyle = lipgloss.NewStyle().Border(lipgloss.ThickBorder())
	menuStyle   = lipgloss.NewStyle().Bold(true)
	titleStyle  = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#000000"))
	labelStyle     = lipgloss.NewStyle().Bold(true)
	userStyle      = lipgloss.NewStyle().Background(lipgloss.Color("#E8E2D0")).Foreground(lipgloss.Color("#000000"))
	assistantStyle = lipgloss.NewStyle()
	greetingStyle  = lipgloss.NewStyle().Faint(true)
	toggleOn       = lipgloss.NewStyle().Bold(true)
	toggleOff      = lipgloss.NewStyle().Faint(true)
)

// Labels are the persona strings the panel shows.
type Labels struct {
	Title       string
	Assistant   string
	User        string
	Greeting    string
	Placeholder string
}

// LabelsFor derives the labels from a persona.
func LabelsFor(p persona.Persona) Labels {
	return Labels{
		Title:       "Happy Mac Chat",
		Assistant:   p.AssistantLabel,
		User:        p.UserLabel,
		Greeting:    p.OpeningLine,
		Placeholder: p.Placeholder,
	}
}

// SubmitMsg carries a trimmed, non-empty draft the user sent.
type SubmitMsg struct {
	Text string
}

// Toggles are the optional mic and speaker buttons.
type Toggles struct {
	Listening    bool
	VoiceEnabled bool
}

// Model is the chat panel.
type Model struct {
	viewport viewport.Model
	input    textinput.Model
	labels   Labels

	messages []chat.Message
	loading  bool
	toggles  Toggles
	width    int
}

// New returns a panel with focused input.
func New(labels Labels) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = labels.Placeholder
	in.CharLimit = 2000
	in.Focus()

	m := Model{
		viewport: viewport.New(defaultWidth, defaultHeight),
		input:    in,
		labels:   labels,
	}
	m.SetSize(defaultWidth, defaultHeight+chromeRows)
	return m
}

// SetSize fits the panel into width x height cells.
func (m *Model) SetSize(width, height int) {
	m.width = max(width-2, 20)
	m.viewport.Width = m.width
	m.viewport.Height = max(height-chromeRows, 3)
	m.input.Width = m.width - runewidth.StringWidth(m.input.Prompt) - 1
	m.refresh()
}

// SetConversation replaces the rendered history.
func (m *Model) SetConversation(messages []chat.Message, loading bool) {
	m.messages = chat.Clone(messages)
	m.loading = loading
	m.refresh()
}

// SetToggles updates the mic and speaker buttons.
func (m *Model) SetToggles(t Toggles) {
	m.toggles = t
}

// Draft returns the current input text.
func (m Model) Draft() string {
	return m.input.Value()
}

// Focus gives the input the cursor.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Update routes keys to the input, scroll keys to the history, and turns
// enter into a SubmitMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			cmd := m.submit()
			return m, cmd
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.loading {
		return nil
	}
	m.input.Reset()
	return func() tea.Msg { return SubmitMsg{Text: text} }
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	width := m.viewport.Width
	if len(m.messages) == 0 && !m.loading {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center,
			greetingStyle.Render(lipgloss.NewStyle().Align(lipgloss.Center).Render(m.labels.Greeting)))
	}

	bubbles := make([]string, 0, len(m.messages)+1)
	for _, msg := range m.messages {
		bubbles = append(bubbles, m.renderMessage(msg.Role, msg.Content, width))
	}
	if m.loading {
		bubbles = append(bubbles, m.renderMessage(chat.RoleAssistant, Cursor, width))
	}
	return strings.Join(bubbles, "\n\n")
}

func (m Model) renderMessage(role chat.Role, content string, width int) string {
	bubbleWidth := width * 3 / 4
	label, style, align := m.labels.Assistant, assistantStyle, lipgloss.Left
	if role == chat.RoleUser {
		label, style, align = m.labels.User, userStyle, lipgloss.Right
	}

	body := labelStyle.Render(label) + "\n" + content
	bubble := style.Padding(0, 1).Render(lipgloss.NewStyle().MaxWidth(bubbleWidth).Width(min(bubbleWidth, lipgloss.Width(body))).Render(body))
	return lipgloss.PlaceHorizontal(width, align, bubble)
}

func (m Model) renderToggles() string {
	mic, speaker := toggleOff.Render("[mic off]"), toggleOff.Render("[voice off]")
	if m.toggles.Listening {
		mic = toggleOn.Render("[mic on]")
	}
	if m.toggles.VoiceEnabled {
		speaker = toggleOn.Render("[voice on]")
	}
	return mic + " " + speaker
}

// View renders the panel window.
func (m Model) View() string {
	menu := menuStyle.Render("🍎  File  Edit  Chat")
	title := titleStyle.Width(m.width).Render(
		padBetween(" "+m.labels.Title, "✕ ", m.width))

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		strings.Repeat("─", m.width),
		m.input.View(),
		m.renderToggles(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, menu, windowStyle.Render(body))
}

// padBetween lays out left and right at the edges of width cells.
func padBetween(left, right string, width int) string {
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
