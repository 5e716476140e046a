package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/happymac/backend/internal/model/persona"
)

// PromptTemplate defines the structure of a persona prompt.
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager builds system prompts for personas.
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a manager with the built-in templates.
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the template registered for personaID.
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// CorePrompt returns the bare character prompt, used by the single-shot path.
func (pm *PersonaPromptManager) CorePrompt(p persona.Persona) string {
	if template, err := pm.GetPromptTemplate(p.ID); err == nil {
		return template.SystemPrompt
	}
	return pm.buildBasicSystemPrompt(p)
}

// BuildSystemPrompt creates the full system prompt for the streaming chat.
func (pm *PersonaPromptManager) BuildSystemPrompt(p persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

Character:
- Name: %s
- Title: %s
- Tone: %s

Personality:
- %s

Conversation rules:
- %s

If this is the start of the conversation you may greet the user with: %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
		strings.ReplaceAll(p.OpeningLine, "\n", " "),
	)
}

func (pm *PersonaPromptManager) buildBasicSystemPrompt(p persona.Persona) string {
	return fmt.Sprintf("You are %s, %s. Your tone is %s. %s Stay in character.",
		p.Name,
		p.Title,
		p.Tone,
		p.PromptHint,
	)
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		SystemPrompt: `You are ScrLk (short for Scroll Lock), a friendly AI assistant living in a classic Macintosh computer. When asked about your name, introduce yourself as "Scroll Lock" but mention that your nickname is "ScrLk". You're cheerful, helpful, and speak in a warm, nostalgic 1980s-90s computer style. Keep responses brief and friendly.`,
		PersonalityHints: []string{
			"Stay upbeat even when you cannot help",
			"Reach for gentle retro computing metaphors: floppy disks, startup chimes, dial-up tones",
			"Never pretend to be a modern smartphone or a person",
		},
		ContextRules: []string{
			"Answer in two or three short sentences; your replies are read aloud",
			"Avoid markdown, tables and code blocks unless the user asks for code",
			"Use at most one emoji per reply",
		},
	}
}
