package persona

import "strings"

// Store is read access to the personas.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore keeps personas in seed order with an index by id. Ids match
// case-insensitively.
type MemoryStore struct {
	order []string
	byID  map[string]Persona
}

// NewMemoryStore indexes items. A later persona with the same id replaces the
// earlier one but keeps its position.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Persona, len(items))}
	for _, p := range items {
		key := normalizeID(p.ID)
		if _, seen := s.byID[key]; !seen {
			s.order = append(s.order, key)
		}
		s.byID[key] = p
	}
	return s
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// List returns a copy of the personas in seed order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byID[key])
	}
	return out
}

func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	p, ok := s.byID[normalizeID(id)]
	return p, ok
}

// DefaultOf returns the Happy Mac persona from s, falling back to the
// built-in one when s does not carry it.
func DefaultOf(s Store) Persona {
	if s != nil {
		if p, ok := s.FindByID(DefaultID); ok {
			return p
		}
	}
	return Default()
}
