// Package app is the root model of the terminal widget.
package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/internal/service/session"
	"github.com/zhouzirui/happymac/backend/internal/ui/mascot"
	"github.com/zhouzirui/happymac/backend/internal/ui/panel"
	"github.com/zhouzirui/happymac/backend/internal/ui/toast"
)

// Controller is the session the widget drives.
type Controller interface {
	State() session.State
	SendMessage(ctx context.Context, text string) bool
	ToggleVoice() bool
	ToggleChatVisible() bool
	SetChatVisible(visible bool)
}

// StateMsg delivers a controller snapshot to the program.
type StateMsg session.State

// ToastMsg delivers a controller notification to the program.
type ToastMsg session.Toast

var (
	helpStyle   = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Bold(true)
)

const helpText = "enter send · ctrl+t chat · ctrl+v voice · ctrl+r mic · esc close · ctrl+c quit"

// Model is the widget: the mascot on top, the chat panel when visible,
// toasts at the bottom.
type Model struct {
	ctx        context.Context
	controller Controller

	state  session.State
	mascot mascot.Model
	panel  panel.Model
	toasts toast.Model

	width  int
	height int
}

// New builds the widget around controller. ctx bounds the chat requests.
func New(ctx context.Context, controller Controller, p persona.Persona) Model {
	m := Model{
		ctx:        ctx,
		controller: controller,
		mascot:     mascot.New(),
		panel:      panel.New(panel.LabelsFor(p)),
		toasts:     toast.New(),
	}
	m.apply(controller.State())
	return m
}

// Init starts the mascot animation.
func (m Model) Init() tea.Cmd {
	return m.mascot.Init()
}

// Update implements tea.Model. Controller calls publish back into the
// program, so they always run as commands, never inside Update.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.panel.SetSize(min(msg.Width, 80), msg.Height-mascotRows-2)
		return m, nil

	case StateMsg:
		m.apply(session.State(msg))
		return m, nil

	case ToastMsg:
		cmd := m.toasts.Push(toast.FromSession(session.Toast(msg)))
		return m, cmd

	case toast.ExpireMsg:
		m.toasts, _ = m.toasts.Update(msg)
		return m, nil

	case mascot.TickMsg:
		var cmd tea.Cmd
		m.mascot, cmd = m.mascot.Update(msg)
		return m, cmd

	case panel.SubmitMsg:
		return m, m.send(msg.Text)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.state.ChatVisible {
		var cmd tea.Cmd
		m.panel, cmd = m.panel.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyCtrlT:
		return m, m.run(func(c Controller) { c.ToggleChatVisible() })
	case tea.KeyCtrlV:
		return m, m.run(func(c Controller) { c.ToggleVoice() })
	case tea.KeyEsc:
		return m, m.run(func(c Controller) { c.SetChatVisible(false) })
	case tea.KeyCtrlR:
		cmd := m.toasts.Push(toast.Toast{
			Title:       "Speech recognition",
			Description: "Speech recognition is not supported",
			Kind:        toast.KindError,
		})
		return m, cmd
	}

	if !m.state.ChatVisible {
		return m, nil
	}
	var cmd tea.Cmd
	m.panel, cmd = m.panel.Update(msg)
	return m, cmd
}

// send hands the text to the controller. SendMessage blocks for the whole
// reply, which is fine inside a command.
func (m Model) send(text string) tea.Cmd {
	ctx := m.ctx
	return m.run(func(c Controller) { c.SendMessage(ctx, text) })
}

func (m Model) run(fn func(Controller)) tea.Cmd {
	c := m.controller
	return func() tea.Msg {
		fn(c)
		return nil
	}
}

func (m *Model) apply(s session.State) {
	m.state = s
	m.mascot.SetState(s.IsLoading, s.IsSpeaking)
	m.panel.SetConversation(s.Messages, s.IsLoading)
	m.panel.SetToggles(panel.Toggles{VoiceEnabled: s.VoiceEnabled})
}

// State returns the last snapshot the widget rendered.
func (m Model) State() session.State {
	return m.state
}

const mascotRows = 10

// View implements tea.Model.
func (m Model) View() string {
	width := max(m.width, 40)
	center := func(s string) string { return lipgloss.PlaceHorizontal(width, lipgloss.Center, s) }

	parts := []string{center(m.mascot.View())}
	if m.state.ChatVisible {
		parts = append(parts, center(m.panel.View()))
	} else {
		parts = append(parts, center(statusStyle.Render(statusLine(m.state))))
	}
	if toasts := m.toasts.View(); toasts != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(width, lipgloss.Right, toasts))
	}
	parts = append(parts, center(helpStyle.Render(helpText)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func statusLine(s session.State) string {
	switch {
	case s.IsLoading:
		return "thinking..."
	case s.IsSpeaking:
		return "talking..."
	default:
		return "press ctrl+t to chat"
	}
}

// Bridge forwards controller events into a running program. Events that
// arrive before Attach are dropped.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach starts forwarding to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Notify implements session.Notifier.
func (b *Bridge) Notify(t session.Toast) {
	b.send(ToastMsg(t))
}

// OnState is a controller subscriber.
func (b *Bridge) OnState(s session.State) {
	b.send(StateMsg(s))
}
