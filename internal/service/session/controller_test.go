package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
)

type streamFunc func(ctx context.Context, messages []chat.Message, h chat.StreamHandlers) error

func (f streamFunc) StreamChat(ctx context.Context, messages []chat.Message, h chat.StreamHandlers) error {
	return f(ctx, messages, h)
}

type spoken struct {
	text        string
	rate, pitch float64
}

type fakeSpeaker struct {
	mu          sync.Mutex
	unsupported bool
	speaking    bool
	spoken      []spoken
	stops       int
}

func (s *fakeSpeaker) Speak(text string, rate, pitch float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = true
	s.spoken = append(s.spoken, spoken{text: text, rate: rate, pitch: pitch})
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	s.stops++
}

func (s *fakeSpeaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSpeaker) Supported() bool { return !s.unsupported }

type toastRecorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *toastRecorder) Notify(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *toastRecorder) all() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

func chunks(parts ...string) streamFunc {
	return func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		for _, p := range parts {
			h.Delta(p)
		}
		h.Done()
		return nil
	}
}

func TestSendMessageAccumulatesDeltasIntoOneAssistantMessage(t *testing.T) {
	for _, parts := range [][]string{
		{"Hello"},
		{"Hel", "lo", " there", "!"},
		{"a", "", "b", "c", "d", "e", "f"},
	} {
		ctrl := NewController(chunks(parts...), nil, nil, Options{})
		require.True(t, ctrl.SendMessage(context.Background(), "Hi"))

		state := ctrl.State()
		require.Len(t, state.Messages, 2)
		require.Equal(t, chat.UserMessage("Hi"), state.Messages[0])

		var want string
		for _, p := range parts {
			want += p
		}
		require.Equal(t, chat.AssistantMessage(want), state.Messages[1])
		require.False(t, state.IsLoading)
	}
}

func TestSendMessageSendsFullHistory(t *testing.T) {
	var seen [][]chat.Message
	ctrl := NewController(streamFunc(func(_ context.Context, m []chat.Message, h chat.StreamHandlers) error {
		seen = append(seen, m)
		h.Delta("ok")
		h.Done()
		return nil
	}), nil, nil, Options{})

	ctrl.SendMessage(context.Background(), "one")
	ctrl.SendMessage(context.Background(), "  two  ")

	require.Len(t, seen, 2)
	require.Equal(t, []chat.Message{
		chat.UserMessage("one"),
		chat.AssistantMessage("ok"),
		chat.UserMessage("two"),
	}, seen[1])
	require.Len(t, ctrl.State().Messages, 4)
}

func TestSendMessageRejectsBlankInput(t *testing.T) {
	called := false
	ctrl := NewController(streamFunc(func(context.Context, []chat.Message, chat.StreamHandlers) error {
		called = true
		return nil
	}), nil, nil, Options{})

	require.False(t, ctrl.SendMessage(context.Background(), ""))
	require.False(t, ctrl.SendMessage(context.Background(), "   \n\t"))
	require.False(t, called)
	require.Empty(t, ctrl.State().Messages)
}

func TestSendMessageIgnoredWhileLoading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ctrl := NewController(streamFunc(func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		close(started)
		<-release
		h.Delta("done")
		h.Done()
		return nil
	}), nil, nil, Options{})

	finished := make(chan bool)
	go func() { finished <- ctrl.SendMessage(context.Background(), "first") }()

	<-started
	require.True(t, ctrl.State().IsLoading)
	require.False(t, ctrl.SendMessage(context.Background(), "second"))
	require.Len(t, ctrl.State().Messages, 1)

	close(release)
	select {
	case ok := <-finished:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("SendMessage did not return")
	}

	state := ctrl.State()
	require.False(t, state.IsLoading)
	require.Equal(t, []chat.Message{chat.UserMessage("first"), chat.AssistantMessage("done")}, state.Messages)
}

func TestStreamErrorCallbackLeavesOnlyUserMessage(t *testing.T) {
	toasts := &toastRecorder{}
	ctrl := NewController(streamFunc(func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		h.Fail("network down")
		return nil
	}), nil, toasts, Options{})

	ctrl.SendMessage(context.Background(), "Hello")

	state := ctrl.State()
	require.False(t, state.IsLoading)
	require.Equal(t, []chat.Message{chat.UserMessage("Hello")}, state.Messages)
	require.Equal(t, []Toast{{Title: "Error", Description: "network down", Variant: VariantDestructive}}, toasts.all())
}

func TestStreamErrorKeepsPartialReply(t *testing.T) {
	ctrl := NewController(streamFunc(func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		h.Delta("Half an ")
		h.Fail("connection reset")
		h.Delta("ignored")
		return nil
	}), nil, &toastRecorder{}, Options{})

	ctrl.SendMessage(context.Background(), "Hello")

	state := ctrl.State()
	require.False(t, state.IsLoading)
	require.Equal(t, []chat.Message{
		chat.UserMessage("Hello"),
		chat.AssistantMessage("Half an "),
	}, state.Messages)
}

func TestStreamerErrorAppendsFallback(t *testing.T) {
	speaker := &fakeSpeaker{}
	ctrl := NewController(streamFunc(func(context.Context, []chat.Message, chat.StreamHandlers) error {
		return errors.New("dial tcp: connection refused")
	}), speaker, nil, Options{})

	ctrl.SendMessage(context.Background(), "Hello")

	state := ctrl.State()
	require.False(t, state.IsLoading)
	require.Equal(t, []chat.Message{
		chat.UserMessage("Hello"),
		chat.AssistantMessage(FallbackReply),
	}, state.Messages)
	require.Empty(t, speaker.spoken)
}

func TestStreamerErrorAfterCallbackDoesNotDuplicate(t *testing.T) {
	ctrl := NewController(streamFunc(func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		h.Fail("boom")
		return errors.New("boom")
	}), nil, &toastRecorder{}, Options{})

	ctrl.SendMessage(context.Background(), "Hello")
	require.Equal(t, []chat.Message{chat.UserMessage("Hello")}, ctrl.State().Messages)
}

func TestStreamWithoutCompletionStillClearsLoading(t *testing.T) {
	ctrl := NewController(streamFunc(func(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
		h.Delta("cut off")
		return nil
	}), nil, nil, Options{})

	ctrl.SendMessage(context.Background(), "Hello")
	require.False(t, ctrl.State().IsLoading)
}

func TestDoneSpeaksReplyWhenVoiceEnabled(t *testing.T) {
	speaker := &fakeSpeaker{}
	ctrl := NewController(chunks("Hi ", "there 👋"), speaker, nil, Options{StripEmoji: true, Rate: 1.1, Pitch: 0.8})

	ctrl.SendMessage(context.Background(), "Hello")

	require.Equal(t, []spoken{{text: "Hi there", rate: 1.1, pitch: 0.8}}, speaker.spoken)
}

func TestDoneSkipsSpeechWhenNotApplicable(t *testing.T) {
	t.Run("voice disabled", func(t *testing.T) {
		speaker := &fakeSpeaker{}
		ctrl := NewController(chunks("Hi"), speaker, nil, Options{})
		ctrl.ToggleVoice()
		ctrl.SendMessage(context.Background(), "Hello")
		require.Empty(t, speaker.spoken)
	})

	t.Run("unsupported", func(t *testing.T) {
		speaker := &fakeSpeaker{unsupported: true}
		ctrl := NewController(chunks("Hi"), speaker, nil, Options{})
		ctrl.SendMessage(context.Background(), "Hello")
		require.Empty(t, speaker.spoken)
	})

	t.Run("empty reply", func(t *testing.T) {
		speaker := &fakeSpeaker{}
		ctrl := NewController(chunks(), speaker, nil, Options{})
		ctrl.SendMessage(context.Background(), "Hello")
		require.Empty(t, speaker.spoken)
	})
}

func TestToggleVoiceStopsPlaybackFirst(t *testing.T) {
	speaker := &fakeSpeaker{speaking: true}
	toasts := &toastRecorder{}
	ctrl := NewController(chunks(), speaker, toasts, Options{})

	require.True(t, ctrl.State().VoiceEnabled)
	require.False(t, ctrl.ToggleVoice())

	require.False(t, speaker.IsSpeaking())
	require.Equal(t, 1, speaker.stops)
	require.False(t, ctrl.State().VoiceEnabled)

	require.True(t, ctrl.ToggleVoice())
	require.Equal(t, 1, speaker.stops)

	require.Equal(t, []Toast{
		{Title: "Voice output disabled", Description: "Happy Mac will no longer speak", Variant: VariantDefault},
		{Title: "Voice output enabled", Description: "Happy Mac will speak responses", Variant: VariantDefault},
	}, toasts.all())
}

func TestChatVisibilityIsPresentational(t *testing.T) {
	ctrl := NewController(chunks("x"), nil, nil, Options{})
	ctrl.SendMessage(context.Background(), "Hello")
	before := ctrl.State().Messages

	require.False(t, ctrl.State().ChatVisible)
	require.True(t, ctrl.ToggleChatVisible())
	ctrl.SetChatVisible(false)
	require.False(t, ctrl.State().ChatVisible)
	require.Equal(t, before, ctrl.State().Messages)
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	ctrl := NewController(chunks("a", "b"), nil, nil, Options{})

	var states []State
	cancel := ctrl.Subscribe(func(s State) { states = append(states, s) })

	ctrl.SendMessage(context.Background(), "Hello")

	// user message, two deltas, completion
	require.Len(t, states, 4)
	require.True(t, states[0].IsLoading)
	require.Equal(t, "a", states[1].Messages[1].Content)
	require.Equal(t, "ab", states[2].Messages[1].Content)
	require.False(t, states[3].IsLoading)

	cancel()
	ctrl.ToggleChatVisible()
	require.Len(t, states, 4)
}
