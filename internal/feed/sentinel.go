package feed

import (
	"context"
	"sync/atomic"

	"social-client/internal/models"
)

// Sentinel stands for the last rendered item. When it becomes visible the
// next page is loaded, at most once per sentinel.
type Sentinel struct {
	c            *Controller
	itemID       models.ID
	fired        atomic.Bool
	disconnected atomic.Bool
}

// RegisterSentinel attaches a sentinel to itemID, disconnecting the previous
// one.
func (c *Controller) RegisterSentinel(itemID models.ID) *Sentinel {
	s := &Sentinel{c: c, itemID: itemID}

	c.mu.Lock()
	prev := c.sentinel
	c.sentinel = s
	c.mu.Unlock()

	if prev != nil {
		prev.Disconnect()
	}
	return s
}

func (s *Sentinel) ItemID() models.ID {
	return s.itemID
}

// Disconnect stops the sentinel from triggering loads.
func (s *Sentinel) Disconnect() {
	s.disconnected.Store(true)
}

// sentinelGeneration returns the generation a load started by s belongs to,
// and whether s is still the mounted controller's sentinel.
func (c *Controller) sentinelGeneration(s *Sentinel) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, c.mounted && c.sentinel == s
}

// IsLastItem reports whether id is the last loaded item, the only valid
// sentinel position.
func (c *Controller) IsLastItem(id models.ID) bool {
	return isLast(c.state.Snapshot(), id)
}

func isLast(snap Snapshot, id models.ID) bool {
	n := len(snap.Items)
	return n > 0 && snap.Items[n-1].ID == id
}

// Intersect signals that the sentinel entered the viewport. It reports
// whether a load of the next page was started. Nothing happens while another
// load is in flight, when there are no more pages, when the sentinel is no
// longer on the last item or once it fired.
func (s *Sentinel) Intersect(ctx context.Context) bool {
	if s.disconnected.Load() || s.fired.Load() {
		return false
	}
	if !s.c.loading.CompareAndSwap(false, true) {
		return false
	}
	gen, current := s.c.sentinelGeneration(s)
	snap := s.c.state.Snapshot()
	if !current || !snap.HasMore || !isLast(snap, s.itemID) || !s.fired.CompareAndSwap(false, true) {
		s.c.loading.Store(false)
		return false
	}

	next := snap.Page + 1
	ctx = context.WithoutCancel(ctx)
	s.c.wg.Add(1)
	go func() {
		defer s.c.wg.Done()
		defer s.c.loading.Store(false)
		if err := s.c.load(ctx, next, gen); err != nil {
			s.c.log.Warn("sentinel load failed", "page", next, "error", err)
		}
	}()
	return true
}
