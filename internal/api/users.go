package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"social-client/internal/models"
)

// GetUser fetches a member's public profile.
func (c *Client) GetUser(ctx context.Context, userID models.ID) (models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", "GET /user/{id}", "/user/"+url.PathEscape(userID.String()), nil, &raw); err != nil {
		return models.User{}, err
	}
	return decodeUser(raw)
}

// GetProfile fetches the authenticated user.
func (c *Client) GetProfile(ctx context.Context) (models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", "GET /profile", "/profile", nil, &raw); err != nil {
		return models.User{}, err
	}
	return decodeUser(raw)
}

// decodeUser accepts {"user": {...}} as well as a bare user object.
func decodeUser(raw json.RawMessage) (models.User, error) {
	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return models.User{}, err
	}
	if user.ID == "" {
		return models.User{}, errors.New("user not found")
	}
	return user, nil
}
