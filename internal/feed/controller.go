package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"social-client/internal/logger"
	"social-client/internal/models"
	"social-client/internal/observability"
)

const (
	DefaultPageSize   = 5
	UnknownAuthor     = "Unknown"
	DefaultAvatarPath = "/default-avatar.png"
)

var (
	ErrLoadInFlight = errors.New("feed: a page load is already in flight")
	ErrNoMorePages  = errors.New("feed: no more pages")
	ErrItemNotFound = errors.New("feed: item not found")
)

// API is the REST side of the feed.
type API interface {
	GetFeedPage(ctx context.Context, page, limit int) (models.FeedPage, error)
	GetUser(ctx context.Context, userID models.ID) (models.User, error)
	LikePost(ctx context.Context, postID models.ID) error
	GetLikeCount(ctx context.Context, postID models.ID) (models.LikeCount, error)
}

type Option func(*Controller)

func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLookupConcurrency bounds parallel author lookups per page.
func WithLookupConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.lookupLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Controller drives the paginated feed held in a shared State.
type Controller struct {
	state       *State
	api         API
	pageSize    int
	lookupLimit int
	now         func() time.Time
	log         *slog.Logger

	loading atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	mounted  bool
	sentinel *Sentinel
}

func New(state *State, api API, opts ...Option) *Controller {
	c := &Controller{
		state:       state,
		api:         api,
		pageSize:    DefaultPageSize,
		lookupLimit: 8,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.Component(c.log, "feed")
	return c
}

// State returns the shared container the controller writes to.
func (c *Controller) State() *State {
	return c.state
}

// Mount attaches the controller. When the shared state already holds a
// loaded page nothing is fetched and the saved scroll offset is returned.
// Mounting an already mounted controller keeps loads in flight.
func (c *Controller) Mount(ctx context.Context) (int, error) {
	c.mu.Lock()
	if !c.mounted {
		c.gen++
		c.mounted = true
	}
	c.mu.Unlock()

	snap := c.state.Snapshot()
	if snap.Page >= 1 {
		return snap.ScrollOffset, nil
	}
	return 0, c.LoadPage(ctx, 1)
}

// Unmount records the scroll offset, disconnects the sentinel and discards
// any load still in flight. The shared state is kept.
func (c *Controller) Unmount(scrollOffset int) {
	c.mu.Lock()
	c.gen++
	c.mounted = false
	sentinel := c.sentinel
	c.sentinel = nil
	c.mu.Unlock()

	if sentinel != nil {
		sentinel.Disconnect()
	}
	c.state.SetScrollOffset(scrollOffset)
}

// Wait blocks until loads started by sentinels have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// LoadPage fetches page n and merges it. Only one load runs at a time.
func (c *Controller) LoadPage(ctx context.Context, n int) error {
	if !c.loading.CompareAndSwap(false, true) {
		return ErrLoadInFlight
	}
	defer c.loading.Store(false)
	return c.load(ctx, n, c.generation())
}

// LoadNext loads the page after the last loaded one.
func (c *Controller) LoadNext(ctx context.Context) error {
	snap := c.state.Snapshot()
	if snap.Page >= 1 && !snap.HasMore {
		return ErrNoMorePages
	}
	return c.LoadPage(ctx, snap.Page+1)
}

// load runs with the loading guard held. The result is dropped unless gen is
// still current when the page arrives.
func (c *Controller) load(ctx context.Context, n int, gen uint64) error {
	c.state.update(func(snap Snapshot) Snapshot {
		snap.Loading = true
		return snap
	})

	page, err := c.api.GetFeedPage(ctx, n, c.pageSize)
	if err != nil {
		observability.IncFeedPageLoad("error")
		c.log.Error("feed page load failed", "page", n, "error", err)
		c.state.update(func(snap Snapshot) Snapshot {
			snap.Loading = false
			if c.generation() == gen {
				snap.Err = err
			}
			return snap
		})
		return fmt.Errorf("load page %d: %w", n, err)
	}

	page.Posts = c.enrich(ctx, page.Posts)

	stale := false
	c.state.update(func(snap Snapshot) Snapshot {
		if c.generation() != gen {
			stale = true
			snap.Loading = false
			return snap
		}
		return applyPage(snap, n, page)
	})
	if stale {
		observability.IncFeedPageLoad("stale")
		c.log.Debug("discarding stale feed page", "page", n)
		return nil
	}

	if len(page.Posts) == 0 {
		observability.IncFeedPageLoad("empty")
	} else {
		observability.IncFeedPageLoad("ok")
	}
	return nil
}

// enrich fills author and relative time. A failed lookup yields the
// placeholder identity for that author only.
func (c *Controller) enrich(ctx context.Context, posts []models.FeedItem) []models.FeedItem {
	if len(posts) == 0 {
		return posts
	}

	var (
		mu      sync.Mutex
		authors = make(map[models.ID]models.User)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.lookupLimit)
	requested := make(map[models.ID]struct{})
	for _, p := range posts {
		userID := p.UserID
		if userID == "" {
			continue
		}
		if _, ok := requested[userID]; ok {
			continue
		}
		requested[userID] = struct{}{}
		g.Go(func() error {
			user, err := c.api.GetUser(gctx, userID)
			if err != nil {
				c.log.Warn("author lookup failed", "user_id", userID, "error", err)
				return nil
			}
			mu.Lock()
			authors[userID] = user
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	now := c.now()
	out := make([]models.FeedItem, len(posts))
	for i, p := range posts {
		user, ok := authors[p.UserID]
		p.Username = UnknownAuthor
		p.Avatar = DefaultAvatarPath
		if ok {
			if name := user.DisplayName(); name != "" {
				p.Username = name
			}
			if user.ImageURL != "" {
				p.Avatar = user.ImageURL
			}
		}
		if !p.CreatedAt.IsZero() {
			p.TimeAgo = humanize.RelTime(p.CreatedAt, now, "ago", "from now")
		}
		out[i] = p
	}
	return out
}

// PatchItem updates exactly one item in place.
func (c *Controller) PatchItem(id models.ID, fn func(models.FeedItem) models.FeedItem) bool {
	patched := false
	c.state.update(func(snap Snapshot) Snapshot {
		snap.Items, patched = patchItem(snap.Items, id, fn)
		return snap
	})
	return patched
}

// ToggleLike flips the like optimistically, persists it and then takes the
// authoritative count. The flip is reverted when persisting fails.
func (c *Controller) ToggleLike(ctx context.Context, id models.ID) (models.FeedItem, error) {
	prev, ok := findItem(c.state.Snapshot().Items, id)
	if !ok {
		return models.FeedItem{}, ErrItemNotFound
	}

	c.PatchItem(id, func(it models.FeedItem) models.FeedItem {
		it.IsLiked = !it.IsLiked
		if it.IsLiked {
			it.Likes++
		} else if it.Likes > 0 {
			it.Likes--
		}
		return it
	})

	if err := c.api.LikePost(ctx, id); err != nil {
		c.log.Error("like failed", "post_id", id, "error", err)
		c.PatchItem(id, func(it models.FeedItem) models.FeedItem {
			it.IsLiked = prev.IsLiked
			it.Likes = prev.Likes
			return it
		})
		return prev, fmt.Errorf("like post: %w", err)
	}

	count, err := c.api.GetLikeCount(ctx, id)
	if err != nil {
		c.log.Warn("like recount failed", "post_id", id, "error", err)
	} else {
		c.PatchItem(id, func(it models.FeedItem) models.FeedItem {
			it.Likes = count.Count
			return it
		})
	}

	item, _ := findItem(c.state.Snapshot().Items, id)
	return item, nil
}
