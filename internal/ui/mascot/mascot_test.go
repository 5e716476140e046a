package mascot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFaceVariants(t *testing.T) {
	open := Face(false, false, 0)
	require.Contains(t, open, "o    o")
	require.Contains(t, open, `\____/`)
	require.NotContains(t, open, "...")

	closed := Face(true, true, 3)
	require.Contains(t, closed, "-    -")
	require.Contains(t, closed, "(__)")
	require.Contains(t, closed, "...")
}

func TestTickAdvancesFrame(t *testing.T) {
	m := New()
	require.NotNil(t, m.Init())

	next, cmd := m.Update(TickMsg{})
	require.Equal(t, 1, next.frame)
	require.NotNil(t, cmd)

	same, cmd := next.Update("other")
	require.Equal(t, 1, same.frame)
	require.Nil(t, cmd)
}

func TestIdleFaceOnlyBlinks(t *testing.T) {
	m := New()
	for i := 0; i < blinkEvery*2; i++ {
		require.Zero(t, m.dots())
		require.False(t, m.mouthOpen())
		m, _ = m.Update(TickMsg{})
	}
}

func TestBlinkLastsOneFrame(t *testing.T) {
	m := New()
	m.frame = blinkEvery - 1
	require.True(t, m.blinking())
	require.Contains(t, m.View(), "-    -")

	m.frame++
	require.False(t, m.blinking())
}

func TestThinkingAndTalking(t *testing.T) {
	m := New()
	m.SetState(true, false)
	require.True(t, m.Thinking())
	require.False(t, m.Talking())

	seen := map[int]bool{}
	for i := 0; i < 6; i++ {
		seen[m.dots()] = true
		m, _ = m.Update(TickMsg{})
	}
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true}, seen)

	m.SetState(false, true)
	m.frame = 0
	require.True(t, m.mouthOpen())
	m.frame = 1
	require.False(t, m.mouthOpen())
	require.True(t, strings.Contains(m.View(), `\____/`))
}
