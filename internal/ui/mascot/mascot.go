// Package mascot draws the Happy Mac face.
//
// The face is driven by two flags, thinking and talking. The only state of
// its own is the animation frame, which makes the eyes blink now and then,
// bounces the thinking dots and moves the mouth while talking.
package mascot

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// FrameInterval is the animation tick.
	FrameInterval = 150 * time.Millisecond
	// blinkEvery is the number of frames between blinks; a blink lasts one frame.
	blinkEvery = 24
)

var (
	caseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2B2B2B")).
			Background(lipgloss.Color("#E8E2D0"))
	screenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1F6F3F"))
	dotsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")).Bold(true)
)

// TickMsg advances the animation.
type TickMsg struct{}

// Model is the mascot component.
type Model struct {
	thinking bool
	talking  bool
	frame    int
}

// New returns an idle mascot.
func New() Model {
	return Model{}
}

// Init starts the animation timer.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(FrameInterval, func(time.Time) tea.Msg { return TickMsg{} })
}

// Update advances the frame on every tick.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		m.frame++
		return m, tick()
	}
	return m, nil
}

// SetState replaces the two presentation flags.
func (m *Model) SetState(thinking, talking bool) {
	m.thinking = thinking
	m.talking = talking
}

// Thinking reports the thinking flag.
func (m Model) Thinking() bool { return m.thinking }

// Talking reports the talking flag.
func (m Model) Talking() bool { return m.talking }

func (m Model) blinking() bool {
	return m.frame%blinkEvery == blinkEvery-1
}

func (m Model) mouthOpen() bool {
	return m.talking && m.frame%2 == 0
}

func (m Model) dots() int {
	if !m.thinking {
		return 0
	}
	return (m.frame/2)%3 + 1
}

// View renders the face for the current frame.
func (m Model) View() string {
	return Face(m.blinking(), m.mouthOpen(), m.dots())
}

// Face renders the mascot with the given eyes, mouth and number of thinking
// dots (0 to 3).
func Face(eyesClosed, mouthOpen bool, dots int) string {
	eyes := "  o    o  "
	if eyesClosed {
		eyes = "  -    -  "
	}
	mouth := "  \\____/  "
	if mouthOpen {
		mouth = "   (__)   "
	}

	screen := []string{
		"          ",
		eyes,
		"     )    ",
		mouth,
		"          ",
	}

	var b strings.Builder
	b.WriteString(dotsStyle.Render(thinkingDots(dots)) + "\n")
	b.WriteString(caseStyle.Render(" ______________ ") + "\n")
	b.WriteString(caseStyle.Render("|  __________  |") + "\n")
	for _, line := range screen {
		b.WriteString(caseStyle.Render("| |") + screenStyle.Render(line) + caseStyle.Render("| |") + "\n")
	}
	b.WriteString(caseStyle.Render("| |__________| |") + "\n")
	b.WriteString(caseStyle.Render("|     ____  ▫  |") + "\n")
	b.WriteString(caseStyle.Render("|______________|"))
	return b.String()
}

func thinkingDots(n int) string {
	if n <= 0 {
		return strings.Repeat(" ", 16)
	}
	if n > 3 {
		n = 3
	}
	return "        " + strings.Repeat(".", n) + strings.Repeat(" ", 8-n)
}
