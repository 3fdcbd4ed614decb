package viewer

import (
	"slices"
	"sync"

	"document-chat/internal/models"
)

// State is an in-memory document viewer: the current page and the highlighted regions.
// Setting the same page or highlights again leaves it unchanged.
type State struct {
	mu         sync.RWMutex
	page       int
	highlights []models.Highlight
}

// Snapshot is a copy of the viewer state at a point in time.
type Snapshot struct {
	Page       int                `json:"page"`
	Highlights []models.Highlight `json:"highlights"`
}

func NewState() *State {
	return &State{page: 1}
}

func (s *State) NavigateToPage(page int) {
	s.navigate(page)
}

func (s *State) SetHighlights(highlights []models.Highlight) {
	s.setHighlights(highlights)
}

// navigate reports whether the page changed.
func (s *State) navigate(page int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == page {
		return false
	}
	s.page = page
	return true
}

// setHighlights reports whether the highlights changed.
func (s *State) setHighlights(highlights []models.Highlight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Equal(s.highlights, highlights) {
		return false
	}
	s.highlights = slices.Clone(highlights)
	return true
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Page: s.page, Highlights: slices.Clone(s.highlights)}
}
