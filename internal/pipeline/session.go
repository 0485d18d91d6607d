package pipeline

import (
	"sort"
	"sync"
)

// Session is one user's working state: the current input, the provider
// they picked, and the text generated per skill id.
type Session struct {
	ID string

	mu       sync.RWMutex
	input    string
	provider string
	results  map[int]string
}

// NewSession creates an empty session.
func NewSession(id, provider string) *Session {
	return &Session{
		ID:       id,
		provider: provider,
		results:  make(map[int]string),
	}
}

func (s *Session) Input() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input
}

// SetInput replaces the input text. Stored results are kept.
func (s *Session) SetInput(input string) {
	s.mu.Lock()
	s.input = input
	s.mu.Unlock()
}

func (s *Session) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Session) SetProvider(name string) {
	s.mu.Lock()
	s.provider = name
	s.mu.Unlock()
}

// Result returns the stored text for id.
func (s *Session) Result(id int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.results[id]
	return text, ok
}

// Results returns a copy of every stored result.
func (s *Session) Results() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, len(s.results))
	for id, text := range s.results {
		out[id] = text
	}
	return out
}

// CompletedIDs returns the ids with a stored result, ascending.
func (s *Session) CompletedIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.results))
	for id := range s.results {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Completed returns how many skills have a stored result.
func (s *Session) Completed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Clear removes every result. Input and provider are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	s.results = make(map[int]string)
	s.mu.Unlock()
}

func (s *Session) setResult(id int, text string) {
	s.mu.Lock()
	s.results[id] = text
	s.mu.Unlock()
}
