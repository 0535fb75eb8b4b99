package feed

import (
	"sync"

	"social-client/internal/models"
)

// Snapshot is the pagination state of the home feed.
type Snapshot struct {
	Items        []models.FeedItem `json:"items"`
	Page         int               `json:"page"`
	HasMore      bool              `json:"hasMore"`
	ScrollOffset int               `json:"scrollOffset"`
	Loading      bool              `json:"loading"`
	Err          error             `json:"-"`
}

// State outlives any single Controller so that a remounted feed resumes where
// it left off. Create one per process and hand it to every Controller.
type State struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewState() *State {
	return &State{snap: initialSnapshot()}
}

func initialSnapshot() Snapshot {
	return Snapshot{Items: []models.FeedItem{}, HasMore: true}
}

// Snapshot returns a copy safe to hand to callers.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snap)
}

// Page is the last successfully loaded page, 0 before the first load.
func (s *State) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Page
}

// SetScrollOffset records the last viewport position.
func (s *State) SetScrollOffset(offset int) {
	s.update(func(snap Snapshot) Snapshot {
		snap.ScrollOffset = offset
		return snap
	})
}

// Reset drops every item and rewinds to the first-load state.
func (s *State) Reset() {
	s.update(func(Snapshot) Snapshot {
		return initialSnapshot()
	})
}

// update replaces the snapshot with fn applied to it. fn must not retain or
// mutate the slice it receives.
func (s *State) update(fn func(Snapshot) Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = fn(s.snap)
	return copySnapshot(s.snap)
}

func copySnapshot(snap Snapshot) Snapshot {
	items := make([]models.FeedItem, len(snap.Items))
	copy(items, snap.Items)
	snap.Items = items
	return snap
}
