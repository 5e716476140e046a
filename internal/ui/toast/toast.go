// Package toast renders auto-dismissing notifications in the widget.
package toast

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/zhouzirui/happymac/backend/internal/service/session"
)

// Kind selects the toast colour.
type Kind int

const (
	KindStatus Kind = iota
	KindError
)

const (
	StatusDuration = 4 * time.Second
	ErrorDuration  = 8 * time.Second

	maxToasts = 3
	maxWidth  = 48
)

var (
	statusStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5FAFD7")).
			Padding(0, 1)
	errorStyle = statusStyle.
			BorderForeground(lipgloss.Color("#D75F5F"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Toast is one visible notification.
type Toast struct {
	ID          int
	Title       string
	Description string
	Kind        Kind
	Duration    time.Duration
}

// ExpireMsg removes the toast with ID.
type ExpireMsg struct {
	ID int
}

// Model is a newest-first stack of toasts.
type Model struct {
	toasts []Toast
	nextID int
}

// New returns an empty stack.
func New() Model {
	return Model{nextID: 1}
}

// FromSession converts a controller notification.
func FromSession(t session.Toast) Toast {
	kind := KindStatus
	if t.Variant == session.VariantDestructive {
		kind = KindError
	}
	return Toast{Title: t.Title, Description: t.Description, Kind: kind}
}

// Push shows t and returns the command that dismisses it.
func (m *Model) Push(t Toast) tea.Cmd {
	t.ID = m.nextID
	m.nextID++
	if t.Duration <= 0 {
		t.Duration = StatusDuration
		if t.Kind == KindError {
			t.Duration = ErrorDuration
		}
	}

	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[:maxToasts]
	}

	id := t.ID
	return tea.Tick(t.Duration, func(time.Time) tea.Msg { return ExpireMsg{ID: id} })
}

// Update handles expiry.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if exp, ok := msg.(ExpireMsg); ok {
		m.dismiss(exp.ID)
	}
	return m, nil
}

func (m *Model) dismiss(id int) {
	kept := m.toasts[:0:0]
	for _, t := range m.toasts {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// Toasts returns the visible toasts, newest first.
func (m Model) Toasts() []Toast {
	return append([]Toast(nil), m.toasts...)
}

// View renders the stack, or "" when empty.
func (m Model) View() string {
	if len(m.toasts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := statusStyle
		if t.Kind == KindError {
			style = errorStyle
		}
		body := titleStyle.Render(runewidth.Truncate(t.Title, maxWidth, "…"))
		if t.Description != "" {
			body += "\n" + runewidth.Truncate(strings.ReplaceAll(t.Description, "\n", " "), maxWidth, "…")
		}
		parts = append(parts, style.Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Right, parts...)
}
