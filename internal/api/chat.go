package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"social-client/internal/models"
)

// GetHistory returns the conversation with targetUserID in server order.
func (c *Client) GetHistory(ctx context.Context, targetUserID models.ID) ([]models.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", "GET /chat/history/{id}", "/chat/history/"+url.PathEscape(targetUserID.String()), nil, &raw); err != nil {
		return nil, err
	}

	var msgs []models.RawMessage
	if err := decodeList(raw, "messages", &msgs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return msgs, nil
}

// EditMessage persists a new body.
func (c *Client) EditMessage(ctx context.Context, messageID models.ID, text string) error {
	body := map[string]string{"text": text}
	return c.do(ctx, "PUT", "PUT /chat/message/{id}", "/chat/message/"+url.PathEscape(messageID.String()), body, nil)
}

// SoftDeleteMessage tombstones a message for both participants.
func (c *Client) SoftDeleteMessage(ctx context.Context, messageID models.ID) error {
	body := map[string]bool{"isDelete": true}
	return c.do(ctx, "PUT", "PUT /chat/message/{id}", "/chat/message/"+url.PathEscape(messageID.String()), body, nil)
}

// RemoveMessage hides a message for the caller only.
func (c *Client) RemoveMessage(ctx context.Context, messageID models.ID) error {
	return c.do(ctx, "DELETE", "DELETE /chat/message/{id}", "/chat/message/"+url.PathEscape(messageID.String()), nil, nil)
}

// ListConversations returns the caller's chat list.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "GET", "GET /chat/conversations", "/chat/conversations", nil, &raw); err != nil {
		return nil, err
	}

	var convs []models.Conversation
	if err := decodeList(raw, "conversations", &convs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return convs, nil
}

// decodeList decodes either a bare JSON array or an object holding the
// array under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	inner, ok := obj[key]
	if !ok || string(inner) == "null" {
		return nil
	}
	return json.Unmarshal(inner, out)
}
