package panel

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
)

func newPanel() Model {
	return New(LabelsFor(persona.Default()))
}

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func submit(m Model) (Model, tea.Msg) {
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestGreetingWhenEmpty(t *testing.T) {
	m := newPanel()
	m.SetSize(80, 24)

	history := m.renderHistory()
	require.Contains(t, history, "Hello! I'm the Happy Mac.")
	require.Contains(t, history, "What would you like to talk about?")
	require.Contains(t, m.View(), "Happy Mac Chat")
}

func TestMessagesUseLabels(t *testing.T) {
	m := newPanel()
	m.SetSize(80, 24)
	m.SetConversation([]chat.Message{
		chat.UserMessage("Hi there"),
		chat.AssistantMessage("Hello friend"),
	}, false)

	history := m.renderHistory()
	require.Contains(t, history, "👤 You")
	require.Contains(t, history, "💻 Happy Mac")
	require.Contains(t, history, "Hi there")
	require.Contains(t, history, "Hello friend")
	require.NotContains(t, history, "What would you like")
	require.NotContains(t, history, Cursor)
}

func TestLoadingShowsCursorBubble(t *testing.T) {
	m := newPanel()
	m.SetConversation([]chat.Message{chat.UserMessage("Hi")}, true)
	require.Contains(t, m.renderHistory(), Cursor)

	m.SetConversation(nil, true)
	require.Contains(t, m.renderHistory(), Cursor)
	require.NotContains(t, m.renderHistory(), "What would you like")
}

func TestSubmitTrimsAndClearsDraft(t *testing.T) {
	m := typeText(newPanel(), "  hello mac  ")
	require.Equal(t, "  hello mac  ", m.Draft())

	m, msg := submit(m)
	require.Equal(t, SubmitMsg{Text: "hello mac"}, msg)
	require.Empty(t, m.Draft())
}

func TestSubmitIgnoresBlankDraft(t *testing.T) {
	m := typeText(newPanel(), "   ")
	m, msg := submit(m)
	require.Nil(t, msg)
	require.Equal(t, "   ", m.Draft())
}

func TestSubmitBlockedWhileLoading(t *testing.T) {
	m := newPanel()
	m.SetConversation([]chat.Message{chat.UserMessage("first")}, true)
	m = typeText(m, "second")

	m, msg := submit(m)
	require.Nil(t, msg)
	require.Equal(t, "second", m.Draft())

	m.SetConversation([]chat.Message{chat.UserMessage("first"), chat.AssistantMessage("ok")}, false)
	_, msg = submit(m)
	require.Equal(t, SubmitMsg{Text: "second"}, msg)
}

func TestToggles(t *testing.T) {
	m := newPanel()
	require.Contains(t, m.View(), "[mic off]")
	require.Contains(t, m.View(), "[voice off]")

	m.SetToggles(Toggles{VoiceEnabled: true})
	require.Contains(t, m.View(), "[voice on]")
}

func TestPadBetween(t *testing.T) {
	require.Equal(t, "ab   cd", padBetween("ab", "cd", 7))
	require.Equal(t, "ab cd", padBetween("ab", "cd", 2))
}
