package bench

import "sync"

// ResultSet is the ordered, append-only result sequence of the current matrix.
type ResultSet struct {
	mu      sync.RWMutex
	results []TestResult
}

func NewResultSet() *ResultSet {
	return &ResultSet{}
}

func (s *ResultSet) Append(r TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// All returns a copy in insertion order.
func (s *ResultSet) All() []TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TestResult(nil), s.results...)
}

func (s *ResultSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Reset drops all results; called when a new matrix starts.
func (s *ResultSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
}
