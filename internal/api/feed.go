package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"social-client/internal/models"
)

type rawPost struct {
	ID        models.ID `json:"id"`
	UserID    models.ID `json:"userId"`
	Content   string    `json:"content"`
	Text      string    `json:"text"`
	Image     string    `json:"image"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Reposts   int       `json:"reposts"`
	Shares    int       `json:"shares"`
	IsLiked   bool      `json:"isLiked"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p rawPost) item() models.FeedItem {
	content := p.Content
	if content == "" {
		content = p.Text
	}
	return models.FeedItem{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   content,
		Image:     p.Image,
		Likes:     p.Likes,
		Comments:  p.Comments,
		Reposts:   p.Reposts,
		Shares:    p.Shares,
		IsLiked:   p.IsLiked,
		CreatedAt: p.CreatedAt,
	}
}

// GetFeedPage fetches one page of the home feed, normalized to FeedPage.
func (c *Client) GetFeedPage(ctx context.Context, page, limit int) (models.FeedPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	if err := c.do(ctx, "GET", "GET /post/feed", "/post/feed?"+q.Encode(), nil, &raw); err != nil {
		return models.FeedPage{}, err
	}
	return NormalizeFeedPage(raw)
}

// NormalizeFeedPage turns either {"posts": [...], "hasMore": bool} or a bare
// array into a FeedPage. A bare array has more pages while it is non-empty.
func NormalizeFeedPage(raw json.RawMessage) (models.FeedPage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.FeedPage{Posts: []models.FeedItem{}}, nil
	}

	var posts []rawPost
	hasMore := false
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &posts); err != nil {
			return models.FeedPage{}, fmt.Errorf("decode feed: %w", err)
		}
		hasMore = len(posts) > 0
	} else {
		var envelope struct {
			Posts   []rawPost `json:"posts"`
			HasMore *bool     `json:"hasMore"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return models.FeedPage{}, fmt.Errorf("decode feed: %w", err)
		}
		posts = envelope.Posts
		if envelope.HasMore != nil {
			hasMore = *envelope.HasMore
		} else {
			hasMore = len(posts) > 0
		}
	}

	items := make([]models.FeedItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.item())
	}
	if len(items) == 0 {
		hasMore = false
	}
	return models.FeedPage{Posts: items, HasMore: hasMore}, nil
}

// LikePost toggles the caller's like on a post.
func (c *Client) LikePost(ctx context.Context, postID models.ID) error {
	return c.do(ctx, "POST", "POST /user/post/like/{id}", "/user/post/like/"+url.PathEscape(postID.String()), struct{}{}, nil)
}

// GetLikeCount returns the authoritative like state of a post.
func (c *Client) GetLikeCount(ctx context.Context, postID models.ID) (models.LikeCount, error) {
	var raw struct {
		Count   *int  `json:"count"`
		Likes   *int  `json:"likes"`
		IsLiked *bool `json:"isLiked"`
		Liked   *bool `json:"liked"`
	}
	if err := c.do(ctx, "GET", "GET /user/post/likes/count/{id}", "/user/post/likes/count/"+url.PathEscape(postID.String()), nil, &raw); err != nil {
		return models.LikeCount{}, err
	}

	var out models.LikeCount
	switch {
	case raw.Count != nil:
		out.Count = *raw.Count
	case raw.Likes != nil:
		out.Count = *raw.Likes
	}
	switch {
	case raw.IsLiked != nil:
		out.IsLiked = *raw.IsLiked
	case raw.Liked != nil:
		out.IsLiked = *raw.Liked
	}
	return out, nil
}
