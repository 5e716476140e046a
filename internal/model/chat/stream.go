package chat

// StreamHandlers receives the events of one streamed reply.
// Nil fields are ignored.
type StreamHandlers struct {
	OnDelta func(chunk string)
	OnDone  func()
	OnError func(message string)
}

// Delta forwards a chunk to OnDelta.
func (h StreamHandlers) Delta(chunk string) {
	if h.OnDelta != nil {
		h.OnDelta(chunk)
	}
}

// Done signals completion.
func (h StreamHandlers) Done() {
	if h.OnDone != nil {
		h.OnDone()
	}
}

// Fail reports a mid-stream failure.
func (h StreamHandlers) Fail(message string) {
	if h.OnError != nil {
		h.OnError(message)
	}
}
