package app

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/internal/service/session"
	"github.com/zhouzirui/happymac/backend/internal/ui/panel"
	"github.com/zhouzirui/happymac/backend/internal/ui/toast"
)

type fakeController struct {
	mu      sync.Mutex
	state   session.State
	sent    []string
	toggles []string
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) SendMessage(_ context.Context, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return true
}

func (f *fakeController) ToggleVoice() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, "voice")
	f.state.VoiceEnabled = !f.state.VoiceEnabled
	return f.state.VoiceEnabled
}

func (f *fakeController) ToggleChatVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, "chat")
	f.state.ChatVisible = !f.state.ChatVisible
	return f.state.ChatVisible
}

func (f *fakeController) SetChatVisible(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, "hide")
	f.state.ChatVisible = v
}

func newModel(state session.State) (Model, *fakeController) {
	fc := &fakeController{state: state}
	return New(context.Background(), fc, persona.Default()), fc
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestToggleKeysRunControllerInCommands(t *testing.T) {
	m, fc := newModel(session.State{VoiceEnabled: true})

	_, cmd := update(t, m, key(tea.KeyCtrlT))
	require.NotNil(t, cmd)
	require.Empty(t, fc.toggles)
	require.Nil(t, cmd())

	_, cmd = update(t, m, key(tea.KeyCtrlV))
	cmd()
	_, cmd = update(t, m, key(tea.KeyEsc))
	cmd()

	require.Equal(t, []string{"chat", "voice", "hide"}, fc.toggles)
}

func TestStateMsgDrivesMascotAndPanel(t *testing.T) {
	m, _ := newModel(session.State{})

	m, _ = update(t, m, StateMsg{
		Messages:    []chat.Message{chat.UserMessage("Hi")},
		IsLoading:   true,
		ChatVisible: true,
	})
	require.True(t, m.mascot.Thinking())
	require.False(t, m.mascot.Talking())
	require.True(t, m.State().ChatVisible)
	require.Contains(t, m.View(), panel.Cursor)

	m, _ = update(t, m, StateMsg{IsSpeaking: true})
	require.False(t, m.mascot.Thinking())
	require.True(t, m.mascot.Talking())
	require.NotContains(t, m.View(), "Happy Mac Chat")
}

func TestTypingAndSubmitSendsMessage(t *testing.T) {
	m, fc := newModel(session.State{ChatVisible: true})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" hello ")})
	m, cmd := update(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)

	submit := cmd()
	require.Equal(t, panel.SubmitMsg{Text: "hello"}, submit)

	_, cmd = update(t, m, submit)
	require.NotNil(t, cmd)
	cmd()
	require.Equal(t, []string{"hello"}, fc.sent)
}

func TestKeysIgnoredWhileChatHidden(t *testing.T) {
	m, fc := newModel(session.State{})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	require.Nil(t, cmd)
	_, cmd = update(t, m, key(tea.KeyEnter))
	require.Nil(t, cmd)
	require.Empty(t, fc.sent)
}

func TestMicKeyShowsUnsupportedToast(t *testing.T) {
	m, _ := newModel(session.State{})

	m, cmd := update(t, m, key(tea.KeyCtrlR))
	require.NotNil(t, cmd)
	toasts := m.toasts.Toasts()
	require.Len(t, toasts, 1)
	require.Equal(t, toast.KindError, toasts[0].Kind)
	require.Contains(t, m.View(), "Speech recognition is not supported")
}

func TestToastMsgAndExpiry(t *testing.T) {
	m, _ := newModel(session.State{})

	m, cmd := update(t, m, ToastMsg{Title: "Voice output disabled", Description: "Happy Mac will no longer speak"})
	require.NotNil(t, cmd)
	require.Contains(t, m.View(), "Voice output disabled")

	id := m.toasts.Toasts()[0].ID
	m, _ = update(t, m, toast.ExpireMsg{ID: id})
	require.NotContains(t, m.View(), "Voice output disabled")
}

func TestCtrlCQuits(t *testing.T) {
	m, _ := newModel(session.State{})
	_, cmd := update(t, m, key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWindowSize(t *testing.T) {
	m, _ := newModel(session.State{ChatVisible: true})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	require.Equal(t, 120, m.width)
	require.Contains(t, m.View(), "Happy Mac Chat")
}

func TestBridgeDropsBeforeAttach(t *testing.T) {
	var b Bridge
	b.Notify(session.Toast{Title: "dropped"})
	b.OnState(session.State{})
}
