package toast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/happymac/backend/internal/service/session"
)

func TestFromSession(t *testing.T) {
	got := FromSession(session.Toast{Title: "Error", Description: "boom", Variant: session.VariantDestructive})
	require.Equal(t, KindError, got.Kind)
	require.Equal(t, "boom", got.Description)

	got = FromSession(session.Toast{Title: "Voice output enabled"})
	require.Equal(t, KindStatus, got.Kind)
}

func TestPushAndExpire(t *testing.T) {
	m := New()
	require.Empty(t, m.View())

	cmd := m.Push(Toast{Title: "first"})
	require.NotNil(t, cmd)
	m.Push(Toast{Title: "second", Kind: KindError})

	toasts := m.Toasts()
	require.Len(t, toasts, 2)
	require.Equal(t, "second", toasts[0].Title)
	require.Equal(t, ErrorDuration, toasts[0].Duration)
	require.Equal(t, StatusDuration, toasts[1].Duration)

	view := m.View()
	require.Contains(t, view, "first")
	require.Contains(t, view, "second")

	m, _ = m.Update(ExpireMsg{ID: toasts[1].ID})
	require.Len(t, m.Toasts(), 1)
	require.Equal(t, "second", m.Toasts()[0].Title)
}

func TestStackIsBounded(t *testing.T) {
	m := New()
	for i := 0; i < maxToasts+2; i++ {
		m.Push(Toast{Title: "t"})
	}
	require.Len(t, m.Toasts(), maxToasts)
}

func TestLongDescriptionTruncated(t *testing.T) {
	m := New()
	m.Push(Toast{Title: "Error", Description: strings.Repeat("x", 200)})
	require.Contains(t, m.View(), "…")
	require.NotContains(t, m.View(), strings.Repeat("x", maxWidth+1))
}
