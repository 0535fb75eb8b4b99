package models

import "time"

// FeedItem is a post in the home feed with its author denormalized.
type FeedItem struct {
	ID        ID        `json:"id"`
	UserID    ID        `json:"userId"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Reposts   int       `json:"reposts"`
	Shares    int       `json:"shares"`
	IsLiked   bool      `json:"isLiked"`
	CreatedAt time.Time `json:"createdAt"`

	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	TimeAgo  string `json:"time"`
}

// FeedPage is one normalized page of the feed endpoint.
type FeedPage struct {
	Posts   []FeedItem `json:"posts"`
	HasMore bool       `json:"hasMore"`
}

// LikeCount is the authoritative like counter of a post.
type LikeCount struct {
	Count   int  `json:"count"`
	IsLiked bool `json:"isLiked"`
}
