package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

// FallbackReply is appended when the chat client fails outside its callbacks.
const FallbackReply = "Oops! Something went wrong. But I'm still here!"

// ChatStreamer streams one assistant reply for the given history. Mid-stream
// failures are reported through handlers; a returned error means the stream
// could not be run at all.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []chat.Message, handlers chat.StreamHandlers) error
}

// Speaker is the voice output the controller hands finished replies to.
type Speaker interface {
	Speak(text string, rate, pitch float64)
	Stop()
	IsSpeaking() bool
	Supported() bool
}

// Notifier shows transient notifications.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Variant selects how a toast is rendered.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Toast is one notification.
type Toast struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// State is a snapshot of the session.
type State struct {
	Messages     []chat.Message `json:"messages"`
	IsLoading    bool           `json:"isLoading"`
	VoiceEnabled bool           `json:"voiceEnabled"`
	ChatVisible  bool           `json:"chatVisible"`
	IsSpeaking   bool           `json:"isSpeaking"`
}

// Options tunes a Controller.
type Options struct {
	StripEmoji   bool
	Rate         float64
	Pitch        float64
	VoiceEnabled *bool
	Logger       *slog.Logger
}

// Controller owns the message list and the session flags of one chat page.
type Controller struct {
	streamer ChatStreamer
	speaker  Speaker
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	mu           sync.Mutex
	messages     []chat.Message
	loading      bool
	voiceEnabled bool
	chatVisible  bool

	pubMu       sync.Mutex
	subscribers map[int]func(State)
	nextSub     int
}

// NewController wires a controller to its collaborators. speaker and
// notifier may be nil.
func NewController(streamer ChatStreamer, speaker Speaker, notifier Notifier, opts Options) *Controller {
	if opts.Rate <= 0 {
		opts.Rate = 1.0
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 1.0
	}
	voiceEnabled := true
	if opts.VoiceEnabled != nil {
		voiceEnabled = *opts.VoiceEnabled
	}
	return &Controller{
		streamer:     streamer,
		speaker:      speaker,
		notifier:     notifier,
		opts:         opts,
		logger:       logging.Module(opts.Logger, "session"),
		voiceEnabled: voiceEnabled,
		subscribers:  make(map[int]func(State)),
	}
}

// State returns a snapshot of the current session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return State{
		Messages:     chat.Clone(c.messages),
		IsLoading:    c.loading,
		VoiceEnabled: c.voiceEnabled,
		ChatVisible:  c.chatVisible,
		IsSpeaking:   c.speaker != nil && c.speaker.IsSpeaking(),
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes the subscription. fn runs while publishing is
// serialized, so it must not call back into the controller synchronously.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.pubMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.pubMu.Unlock()

	return func() {
		c.pubMu.Lock()
		delete(c.subscribers, id)
		c.pubMu.Unlock()
	}
}

// Refresh publishes the current state, e.g. after the speaker changed.
func (c *Controller) Refresh() {
	c.publish()
}

func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	state := c.State()
	for _, fn := range c.subscribers {
		fn(state)
	}
}

// SendMessage submits text as a user turn and blocks until the reply stream
// settles. It returns false when text is blank or a reply is still loading.
func (c *Controller) SendMessage(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		c.logger.Debug("message ignored while loading")
		return false
	}
	c.messages = append(c.messages, chat.UserMessage(text))
	c.loading = true
	history := chat.Clone(c.messages)
	c.mu.Unlock()
	c.publish()

	reply := &turn{controller: c}
	err := c.streamer.StreamChat(ctx, history, chat.StreamHandlers{
		OnDelta: reply.delta,
		OnDone:  reply.done,
		OnError: reply.fail,
	})

	if err != nil {
		c.logger.Error("chat stream failed", slog.Any("err", err))
		if reply.settle() {
			c.mu.Lock()
			c.loading = false
			c.messages = append(c.messages, chat.AssistantMessage(FallbackReply))
			c.mu.Unlock()
			c.publish()
		}
		return true
	}

	if reply.settle() {
		c.logger.Warn("chat stream returned without completing")
		c.setLoading(false)
	}
	return true
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
	c.publish()
}

// turn accumulates the deltas of one reply.
type turn struct {
	controller *Controller

	mu      sync.Mutex
	buffer  strings.Builder
	settled bool
}

// settle marks the turn finished and reports whether this call did it.
func (t *turn) settle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		return false
	}
	t.settled = true
	return true
}

func (t *turn) delta(chunk string) {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return
	}
	t.buffer.WriteString(chunk)
	content := t.buffer.String()
	t.mu.Unlock()

	c := t.controller
	c.mu.Lock()
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == chat.RoleAssistant {
		c.messages[n-1].Content = content
	} else {
		c.messages = append(c.messages, chat.AssistantMessage(content))
	}
	c.mu.Unlock()
	c.publish()
}

func (t *turn) done() {
	if !t.settle() {
		return
	}
	t.mu.Lock()
	content := t.buffer.String()
	t.mu.Unlock()

	c := t.controller
	c.mu.Lock()
	c.loading = false
	voiceEnabled := c.voiceEnabled
	c.mu.Unlock()
	c.publish()

	if !voiceEnabled || c.speaker == nil || !c.speaker.Supported() || content == "" {
		return
	}
	if c.opts.StripEmoji {
		content = voice.StripEmoji(content)
		if content == "" {
			return
		}
	}
	c.speaker.Speak(content, c.opts.Rate, c.opts.Pitch)
}

func (t *turn) fail(message string) {
	if !t.settle() {
		return
	}

	c := t.controller
	c.logger.Error("stream error", slog.String("message", message))
	c.setLoading(false)
	c.notify(Toast{Title: "Error", Description: message, Variant: VariantDestructive})
}

// ToggleVoice stops any playback first, then flips voice output.
func (c *Controller) ToggleVoice() bool {
	if c.speaker != nil && c.speaker.IsSpeaking() {
		c.speaker.Stop()
	}

	c.mu.Lock()
	c.voiceEnabled = !c.voiceEnabled
	enabled := c.voiceEnabled
	c.mu.Unlock()
	c.publish()

	if enabled {
		c.notify(Toast{Title: "Voice output enabled", Description: "Happy Mac will speak responses", Variant: VariantDefault})
	} else {
		c.notify(Toast{Title: "Voice output disabled", Description: "Happy Mac will no longer speak", Variant: VariantDefault})
	}
	return enabled
}

// ToggleChatVisible flips the chat panel visibility.
func (c *Controller) ToggleChatVisible() bool {
	c.mu.Lock()
	c.chatVisible = !c.chatVisible
	visible := c.chatVisible
	c.mu.Unlock()
	c.publish()
	return visible
}

// SetChatVisible shows or hides the chat panel.
func (c *Controller) SetChatVisible(visible bool) {
	c.mu.Lock()
	changed := c.chatVisible != visible
	c.chatVisible = visible
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

// Notify forwards a toast to the notifier.
func (c *Controller) Notify(t Toast) {
	c.notify(t)
}

func (c *Controller) notify(t Toast) {
	if c.notifier == nil {
		return
	}
	if t.Variant == "" {
		t.Variant = VariantDefault
	}
	c.notifier.Notify(t)
}
