package models

import (
	"strings"
	"time"
)

// User is the public profile of a member.
type User struct {
	ID        ID     `json:"id"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	ImageURL  string `json:"imageUrl"`
}

// DisplayName joins first and last names.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Conversation is one entry of the chat list.
type Conversation struct {
	UserID        ID        `json:"userId"`
	Name          string    `json:"name"`
	Avatar        string    `json:"avatar"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}
