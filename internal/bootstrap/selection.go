package bootstrap

import (
	"strings"
	"sync"
)

// Selection is the ordered list of input locators picked by the user.
// Order is stitching order and duplicates are kept.
type Selection struct {
	mu       sync.Mutex
	locators []string
}

// Add appends locators, skipping blank entries, and returns the new length.
func (s *Selection) Add(locators ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, locator := range locators {
		locator = strings.TrimSpace(locator)
		if locator == "" {
			continue
		}
		s.locators = append(s.locators, locator)
	}
	return len(s.locators)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locators = nil
}

// Snapshot returns a copy safe to hand to a submission.
func (s *Selection) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locators) == 0 {
		return []string{}
	}
	out := make([]string, len(s.locators))
	copy(out, s.locators)
	return out
}

// Len returns the number of selected locators.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locators)
}
