package voice

import (
	"context"
	"fmt"
	"sync"
)

// Source supplies the platform voice list.
type Source interface {
	Voices(ctx context.Context) ([]Info, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Info, error)

func (f SourceFunc) Voices(ctx context.Context) ([]Info, error) { return f(ctx) }

// Registry holds the current voice list. It starts empty and is replaced
// wholesale whenever the platform reports a change.
type Registry struct {
	mu        sync.RWMutex
	voices    []Info
	listeners map[int]func([]Info)
	nextID    int
}

// NewRegistry returns a registry seeded with voices.
func NewRegistry(voices ...Info) *Registry {
	return &Registry{
		voices:    append([]Info(nil), voices...),
		listeners: make(map[int]func([]Info)),
	}
}

// Voices returns a copy of the current list.
func (r *Registry) Voices() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Info(nil), r.voices...)
}

// Replace swaps the list and notifies subscribers.
func (r *Registry) Replace(voices []Info) {
	r.mu.Lock()
	r.voices = append([]Info(nil), voices...)
	snapshot := append([]Info(nil), r.voices...)
	listeners := make([]func([]Info), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Subscribe registers fn for change notifications and returns a cancel func.
func (r *Registry) Subscribe(fn func([]Info)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Refresh loads the list from src and replaces the current one. The previous
// list is kept when loading fails.
func (r *Registry) Refresh(ctx context.Context, src Source) error {
	voices, err := src.Voices(ctx)
	if err != nil {
		return fmt.Errorf("load voices: %w", err)
	}
	r.Replace(voices)
	return nil
}
